//go:build !novulkan

package wgpu

// Registers the Vulkan HAL backend used by New when no device is supplied.
import _ "github.com/gogpu/wgpu/hal/vulkan"
