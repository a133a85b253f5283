package gpu_object

// TextureLoaderBuilderOption is a functional option used to configure a TextureLoader during construction.
type TextureLoaderBuilderOption func(*TextureLoader)

// WithLoaderWorkers sets the number of background workers. Non-positive values fall back to one.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - TextureLoaderBuilderOption: a function that sets the worker count of a loader
func WithLoaderWorkers(n int) TextureLoaderBuilderOption {
	return func(l *TextureLoader) {
		l.workers = max(n, 1)
	}
}
