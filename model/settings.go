package model

// Graphics types supported by the render backend.
const (
	GraphicsStaticImage  = "static-image"
	GraphicsAnimatedLoop = "animated-loop"
	GraphicsMultiScene   = "multi-scene"
)

// Settings holds the video-generation configuration chosen on step 2.
type Settings struct {
	GraphicsType           string  `json:"graphicsType"`
	AnimationStyle         string  `json:"animationStyle,omitempty"`
	CreateIndividualVideos bool    `json:"createIndividualVideos"`
	CreateCompilation      bool    `json:"createCompilation"`
	UseSameVideoForAll     bool    `json:"useSameVideoForAll"`
	VisualStyle            string  `json:"visualStyle,omitempty"`
	Budget                 float64 `json:"budget"`
	UserPrice              float64 `json:"user_price"` // Derived, recomputed by the pricing engine
}

// Valid reports whether the settings form can pass the step-2 guard.
func (s Settings) Valid() bool {
	switch s.GraphicsType {
	case GraphicsStaticImage, GraphicsAnimatedLoop, GraphicsMultiScene:
	default:
		return false
	}
	if s.GraphicsType == GraphicsAnimatedLoop && s.AnimationStyle == "" {
		return false
	}
	// At least one creation mode must be requested.
	return s.CreateIndividualVideos || s.CreateCompilation
}
