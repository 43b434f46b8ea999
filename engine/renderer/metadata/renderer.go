package metadata

/**
 * @brief The usage of a device buffer. Mirrors how the buffer is bound
 * by the modules, the device may use it to pick a storage mode.
 */
type RenderBufferType int

const (
	/** @brief Buffer is use is unknown. Default, but usually invalid. */
	RENDERBUFFER_TYPE_UNKNOWN RenderBufferType = iota
	/** @brief Buffer is used for vertex data. */
	RENDERBUFFER_TYPE_VERTEX
	/** @brief Buffer is used for index data. */
	RENDERBUFFER_TYPE_INDEX
	/** @brief Buffer is used for uniform data, ring buffered per frame in flight. */
	RENDERBUFFER_TYPE_UNIFORM
	/** @brief Buffer is written by a compute pass and read by later draw passes. */
	RENDERBUFFER_TYPE_STORAGE
)

func (t RenderBufferType) String() string {
	switch t {
	case RENDERBUFFER_TYPE_VERTEX:
		return "vertex"
	case RENDERBUFFER_TYPE_INDEX:
		return "index"
	case RENDERBUFFER_TYPE_UNIFORM:
		return "uniform"
	case RENDERBUFFER_TYPE_STORAGE:
		return "storage"
	default:
		return "unknown"
	}
}

/**
 * @brief A CPU visible device allocation. Contents exposes the whole
 * allocation; writes land in GPU memory once the frame is committed.
 */
type Buffer interface {
	Label() string
	Type() RenderBufferType
	Length() int
	Contents() []byte
}

/** @brief A device texture handle. Only the binding layer looks inside. */
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32
}

/** @brief A compiled render pipeline state. */
type Pipeline interface {
	Label() string
}

/** @brief A compiled compute pipeline state. */
type ComputePipeline interface {
	Label() string
	ThreadExecutionWidth() int
}

/** @brief Index element size of a draw call. */
type IndexType int

const (
	INDEX_TYPE_UINT16 IndexType = iota
	INDEX_TYPE_UINT32
)

// Size returns the size of a single index in bytes.
func (t IndexType) Size() int {
	if t == INDEX_TYPE_UINT16 {
		return 2
	}
	return 4
}

/**
 * @brief The render passes a frame is made of. Draw call group lists are
 * kept per pass.
 */
type RenderPassType int

const (
	RENDERPASS_TYPE_MAIN RenderPassType = iota
	RENDERPASS_TYPE_SHADOW
)

func (t RenderPassType) String() string {
	if t == RENDERPASS_TYPE_SHADOW {
		return "shadow"
	}
	return "main"
}
