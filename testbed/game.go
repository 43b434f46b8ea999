package testbed

import (
	gomath "math"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-ar/engine"
	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/math"
	"github.com/spaghettifunk/anima-ar/engine/renderer"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
	"github.com/spaghettifunk/anima-ar/engine/scene"
)

const (
	orbitRadius = 3
	orbitHeight = 1.2
	// radians per second
	orbitSpeed = 0.5
)

// markerModelID is the model registered by the testbed for its markers.
// Manifests under assets/models may bind more.
var markerModelID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("anima-ar/testbed/marker"))

type TestGame struct {
	*engine.Game
}

type gameState struct {
	camera    *scene.Camera
	positions *scene.PositionGraph
	entities  []*scene.Entity

	tracker scene.PositionID
	angle   float64
	elapsed float64
	frame   uint64
}

func NewTestGame(configPath, assetsPath string) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:       "AR Testbed",
				ConfigPath: configPath,
				AssetsPath: assetsPath,
			},
			State: &gameState{
				camera: scene.NewCamera(math.NewMat4Identity(),
					math.NewMat4Perspective(math.DegToRad(60), 16.0/9.0, 0.01, 1000),
					scene.OrientationLandscapeRight),
				positions: scene.NewPositionGraph(),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// Initialize builds a small AR session: two anchors joined by a path, a
// tracker circling the first anchor with its target, and a floor surface.
func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("initializing testbed...")
	st := g.state()

	material := metadata.DefaultMaterial()
	material.BaseColor = math.NewVec4(0.2, 0.6, 1, 1)
	material.Metalness = 0.8
	e.Models().Register(markerModelID, renderer.SingleMeshModel(
		renderer.GenerateCylinderAsset(24, "marker", material)))

	add := func(local math.Mat4, parent scene.PositionID) (scene.PositionID, error) {
		return st.positions.Add(local, parent)
	}
	left, err := add(math.NewMat4Translation(math.NewVec3(-0.5, 0, 0)), scene.NoParent)
	if err != nil {
		return err
	}
	right, err := add(math.NewMat4Translation(math.NewVec3(0.5, 0.25, -0.5)), scene.NoParent)
	if err != nil {
		return err
	}
	tracker, err := add(math.NewMat4Translation(math.NewVec3(0.3, 0.2, 0)), left)
	if err != nil {
		return err
	}
	north := scene.NewAbsoluteHeading(math.NewQuatIdentity())
	north.Updater = scene.NorthHeading{}
	if err := st.positions.SetHeading(tracker, &north); err != nil {
		return err
	}
	target, err := add(math.NewMat4Translation(math.NewVec3(0, 0.1, 0)), tracker)
	if err != nil {
		return err
	}
	floor, err := add(math.NewMat4Translation(math.NewVec3(0, -0.5, 0)), scene.NoParent)
	if err != nil {
		return err
	}
	st.tracker = tracker

	st.entities = []*scene.Entity{
		{
			ID:           uuid.New(),
			Kind:         scene.KindAnchor,
			Position:     left,
			CastsShadows: true,
			Effects: []scene.Effect{
				scene.NewScalarEffect(scene.EffectScale, []float64{0, 1, 2}, []float32{1, 1.5, 1}),
			},
		},
		{
			ID:           uuid.New(),
			Kind:         scene.KindAnchor,
			Model:        uuid.NullUUID{UUID: markerModelID, Valid: true},
			Position:     right,
			CastsShadows: true,
			Effects: []scene.Effect{
				scene.NewConstantEffect(scene.EffectGlow, math.NewVec3(0.3, 0, 0)),
			},
		},
		{ID: uuid.New(), Kind: scene.KindTracker, Position: tracker, Shading: scene.ShadingSimple},
		{ID: uuid.New(), Kind: scene.KindTarget, Position: target, Shading: scene.ShadingSimple},
		{
			ID:   uuid.New(),
			Kind: scene.KindPathSegment,
			Path: &scene.PathSegment{Start: left, End: right, Color: math.NewVec4(1, 0.8, 0, 0.8), Radius: 0.02},
		},
		{ID: uuid.New(), Kind: scene.KindSurface, Position: floor, Surface: &scene.Surface{Extent: math.NewVec3(4, 1, 4)}},
	}
	return nil
}

// Update orbits the camera around the scene and moves the tracker.
func (g *TestGame) Update(deltaTime float64) (*engine.FrameInput, error) {
	st := g.state()
	st.elapsed += deltaTime
	st.angle += orbitSpeed * deltaTime
	st.frame++

	position := math.NewVec3(float32(gomath.Sin(st.angle)*orbitRadius), orbitHeight, float32(gomath.Cos(st.angle)*orbitRadius))
	st.camera.SetTransform(math.NewMat4Translation(position).Mul(math.NewMat4EulerY(float32(st.angle))))

	local := math.NewMat4EulerY(float32(st.elapsed)).Mul(math.NewMat4Translation(math.NewVec3(0.3, 0.2, 0)))
	if err := st.positions.SetTransform(st.tracker, local); err != nil {
		return nil, err
	}

	if st.frame%600 == 0 {
		core.LogDebug("testbed frame %d, camera at [%.2f, %.2f, %.2f]", st.frame, position.X, position.Y, position.Z)
	}

	return &engine.FrameInput{
		Camera: st.camera,
		LightEstimate: &scene.LightEstimate{
			AmbientIntensity:        scene.NeutralAmbientIntensity,
			AmbientColorTemperature: 5500,
		},
		Entities:    st.entities,
		Positions:   st.positions,
		FrameNumber: st.frame,
		Shadow: &scene.ShadowProperties{
			DirectionalLightMVP: math.NewMat4Orthographic(-3, 3, -3, 3, 0.1, 20),
		},
	}, nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("shutting down testbed...")
	return nil
}
