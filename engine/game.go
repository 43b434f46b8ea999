package engine

/**
 * @brief The application driven by the engine. FnUpdate produces the
 * input of the next frame, typically from the AR session.
 */
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnShutdown        Shutdown
}

type Initialize func(e *Engine) error
type Update func(deltaTime float64) (*FrameInput, error)
type Shutdown func() error
