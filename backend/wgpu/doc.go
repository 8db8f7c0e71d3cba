// Package wgpu is a GPU render backend built on the gogpu/wgpu HAL.
//
// Tiles are rendered by a WGSL fragment shader into an RGBA8 texture, copied
// into a staging buffer and read back once the submission's fence signals.
// The gogpu/wgpu implementation is Pure Go and supports Vulkan, Metal and
// DX12 depending on the platform; New opens a Vulkan device unless one is
// supplied with WithDevice or WithDeviceProvider.
//
// # Shaders
//
// A shader is a WGSL body defining
//
//	fn shade(coord: vec2<f32>, resolution: vec2<f32>, time: f32) -> vec4<f32>
//
// The backend prepends a prelude with the scene uniform, a full-screen
// triangle vertex stage and a fragment entry point that calls shade with the
// pixel center in frame coordinates. The result is compiled to SPIR-V with
// naga. Built-in shaders: gradient, plasma, checker. Any other name passed to
// LoadShader is read as a file.
//
// # Slots
//
// The backend owns Depth slots, each holding:
//
//   - render texture and view (tile size, RGBA8Unorm)
//   - uniform buffer and bind group (resolution, tile origin, time)
//   - staging buffer, rows padded to 256 bytes
//
// A submission takes a free slot, records one render pass and one copy, and
// submits with a fresh fence. Retrieve waits on the oldest slot's fence,
// converts the padded RGBA rows to packed RGB and frees the slot.
//
// # Registration
//
// The backend registers itself as "wgpu":
//
//	import _ "github.com/gogpu/tilerender/backend/wgpu"
//
// Build with -tags novulkan to leave out the Vulkan HAL; the backend then
// only works with a device passed in by the caller.
package wgpu
