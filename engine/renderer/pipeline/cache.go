package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/chromaviz/common"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer"
	"github.com/Carmen-Shannon/chromaviz/engine/renderer/shader"
	"github.com/gogpu/naga"
)

// ErrUnknownType is returned when no pipeline is registered for an object type.
var ErrUnknownType = errors.New("pipeline: unknown object type")

// cache is the implementation of the Cache interface.
type cache struct {
	mu     *sync.RWMutex
	device renderer.Device

	pipelines map[string]Pipeline

	validate bool
}

// Cache holds the compiled pipelines of one device, keyed by object type name. It is an explicit context
// passed to scenes and passes, so two devices never share pipelines.
type Cache interface {
	// Device returns the device pipelines are compiled on.
	//
	// Returns:
	//   - renderer.Device: the device
	Device() renderer.Device

	// Register validates and compiles pipelines, then caches them by Key. Keys that are already registered are
	// skipped to avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the pipelines to register
	//
	// Returns:
	//   - error: an error if validation or compilation fails; earlier pipelines stay registered
	Register(pipelines ...Pipeline) error

	// Pipeline returns the compiled pipeline for a key.
	//
	// Parameters:
	//   - key: the object type name
	//
	// Returns:
	//   - Pipeline: the pipeline
	//   - error: ErrUnknownType if nothing is registered under key
	Pipeline(key string) (Pipeline, error)

	// Has reports whether a pipeline is registered under key.
	Has(key string) bool

	// Keys returns the registered keys in sorted order.
	Keys() []string

	// Release releases every compiled pipeline and empties the cache.
	Release()
}

var _ Cache = &cache{}

// NewCache creates an empty pipeline cache for a device.
//
// Parameters:
//   - device: the device pipelines are compiled on
//   - opts: builder options
//
// Returns:
//   - Cache: the cache
func NewCache(device renderer.Device, opts ...CacheBuilderOption) Cache {
	if device == nil {
		panic("pipeline: NewCache requires a non-nil Device")
	}
	c := &cache{
		mu:        &sync.RWMutex{},
		device:    device,
		pipelines: make(map[string]Pipeline),
		validate:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *cache) Device() renderer.Device {
	return c.device
}

func (c *cache) Register(pipelines ...Pipeline) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range pipelines {
		if _, ok := c.pipelines[p.Key()]; ok {
			continue
		}
		impl, ok := p.(*pipeline)
		if !ok {
			return fmt.Errorf("pipeline: foreign implementation %T", p)
		}
		desc := impl.Descriptor()
		if c.validate {
			spirv, err := naga.Compile(desc.Source)
			if err != nil {
				return fmt.Errorf("pipeline %q: invalid WGSL: %w", impl.key, err)
			}
			impl.spirvSize = len(spirv)
			if err := shader.Reflect(desc.Source).Check(desc); err != nil {
				return fmt.Errorf("pipeline %q: %w", impl.key, err)
			}
		}
		rp, err := c.device.CreateRenderPipeline(desc)
		if err != nil {
			return fmt.Errorf("pipeline %q: %w", impl.key, err)
		}
		impl.renderPipeline = rp
		c.pipelines[impl.key] = impl
		common.Logger().Debug("pipeline registered", "key", impl.key, "spirv_bytes", impl.spirvSize)
	}
	return nil
}

func (c *cache) Pipeline(key string) (Pipeline, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.pipelines[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, key)
	}
	return p, nil
}

func (c *cache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.pipelines[key]
	return ok
}

func (c *cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.pipelines))
	for k := range c.pipelines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, p := range c.pipelines {
		p.Release()
		delete(c.pipelines, k)
	}
}

// CacheBuilderOption is a functional option used to configure a Cache during construction.
type CacheBuilderOption func(*cache)

// WithValidation toggles validation before compilation: naga compiles the WGSL and the declared layouts
// are checked against the program. It is on by default.
//
// Parameters:
//   - enabled: whether to validate
//
// Returns:
//   - CacheBuilderOption: a function that sets the validation flag on a cache
func WithValidation(enabled bool) CacheBuilderOption {
	return func(c *cache) {
		c.validate = enabled
	}
}
