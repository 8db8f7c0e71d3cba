// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tilerender/backend"
	"github.com/gogpu/tilerender/tile"
)

// DefaultTimeout is how long Retrieve waits for a tile's fence.
const DefaultTimeout = 5 * time.Second

// uniformSize is the byte size of the Scene uniform in prelude.wgsl:
// resolution (vec2) + origin (vec2) + time (f32) + 3 x f32 padding.
const uniformSize = 32

// rowAlignment is the required alignment of BytesPerRow in
// texture-to-buffer copies.
const rowAlignment = 256

const colorFormat = gputypes.TextureFormatRGBA8Unorm

func init() {
	backend.Register(backend.NameWGPU, func(opts backend.Options) (backend.Backend, error) {
		shader, err := LoadShader(opts.Shader)
		if err != nil {
			return nil, err
		}
		return New(opts.Scene, opts.Depth, shader)
	})
}

// Option configures a Backend.
type Option func(*options)

type options struct {
	device   hal.Device
	queue    hal.Queue
	provider gpucontext.DeviceProvider
	timeout  time.Duration
}

// WithDevice renders on an already opened HAL device. The backend does not
// destroy it.
func WithDevice(device hal.Device, queue hal.Queue) Option {
	return func(o *options) { o.device, o.queue = device, queue }
}

// WithDeviceProvider renders on the device of a gpucontext provider (for
// example a gogpu application). The provider must expose HalDevice() and
// HalQueue().
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithTimeout sets how long Retrieve waits for a tile. The default is
// DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// slot holds the GPU resources of one in-flight tile.
type slot struct {
	tex      hal.Texture
	view     hal.TextureView
	uniform  hal.Buffer
	bind     hal.BindGroup
	staging  hal.Buffer
	readback []byte
	rgb      []byte

	// Set between Submit and Retrieve.
	cmd   hal.CommandBuffer
	fence hal.Fence
}

// Backend renders tiles with a WGSL fragment shader on a gogpu/wgpu HAL
// device, Vulkan by default.
//
// Every slot owns a render texture, a uniform buffer and a readback buffer.
// Submit records a render pass and a texture-to-buffer copy for the tile and
// submits them with a fence; Retrieve waits on the oldest fence and converts
// the readback to RGB.
type Backend struct {
	scene   backend.Scene
	shader  Shader
	dev     *device
	timeout time.Duration
	stride  uint32 // padded readback row pitch

	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline

	arena *backend.Arena
	slots []*slot

	closed bool
}

var _ backend.Backend = (*Backend)(nil)

// New compiles shader and creates a backend with depth slots. A shader that
// fails to compile is reported with ErrShaderCompile before any device is
// opened.
func New(scene backend.Scene, depth int, shader Shader, opts ...Option) (*Backend, error) {
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	spirv, err := shader.compile()
	if err != nil {
		return nil, err
	}

	var dev *device
	switch {
	case o.device != nil:
		dev = &device{device: o.device, queue: o.queue, name: "external"}
	case o.provider != nil:
		dev, err = fromProvider(o.provider)
	default:
		dev, err = openVulkan()
	}
	if err != nil {
		return nil, err
	}

	b := &Backend{
		scene:   scene,
		shader:  shader,
		dev:     dev,
		timeout: o.timeout,
		stride:  alignUp(uint32(scene.Tile.Width)*4, rowAlignment), //nolint:gosec // validated positive
		arena:   backend.NewArena(depth),
	}
	if err := b.createPipeline(spirv); err != nil {
		b.destroy()
		return nil, err
	}
	for range b.arena.Size() {
		s, err := b.createSlot(len(b.slots))
		if err != nil {
			b.destroy()
			return nil, err
		}
		b.slots = append(b.slots, s)
	}

	backend.Logger().Info("wgpu: backend ready",
		"device", dev.name,
		"shader", shader.Name,
		"tile", scene.Tile.String(),
		"slots", len(b.slots))
	return b, nil
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) / a * a
}

func (b *Backend) createPipeline(spirv []uint32) error {
	d := b.dev.device

	module, err := d.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "tile_shader_" + b.shader.Name,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create shader module: %w", err)
	}
	b.module = module

	bindLayout, err := d.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "tile_scene_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group layout: %w", err)
	}
	b.bindLayout = bindLayout

	pipeLayout, err := d.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "tile_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}
	b.pipeLayout = pipeLayout

	pipeline, err := d.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "tile_pipeline",
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: colorFormat, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create render pipeline: %w", err)
	}
	b.pipeline = pipeline
	return nil
}

func (b *Backend) createSlot(i int) (*slot, error) {
	d := b.dev.device
	w := uint32(b.scene.Tile.Width)  //nolint:gosec // validated positive
	h := uint32(b.scene.Tile.Height) //nolint:gosec // validated positive
	s := &slot{}

	var err error
	s.tex, err = d.CreateTexture(&hal.TextureDescriptor{
		Label:         fmt.Sprintf("tile_target_%d", i),
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        colorFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create slot %d texture: %w", i, err)
	}

	s.view, err = d.CreateTextureView(s.tex, &hal.TextureViewDescriptor{
		Label:         fmt.Sprintf("tile_target_view_%d", i),
		Format:        colorFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		b.destroySlot(s)
		return nil, fmt.Errorf("wgpu: create slot %d view: %w", i, err)
	}

	s.uniform, err = d.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("tile_scene_%d", i),
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		b.destroySlot(s)
		return nil, fmt.Errorf("wgpu: create slot %d uniform: %w", i, err)
	}

	s.bind, err = d.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  fmt.Sprintf("tile_scene_bind_%d", i),
		Layout: b.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: s.uniform.NativeHandle(), Offset: 0, Size: uniformSize,
			}},
		},
	})
	if err != nil {
		b.destroySlot(s)
		return nil, fmt.Errorf("wgpu: create slot %d bind group: %w", i, err)
	}

	readbackSize := uint64(b.stride) * uint64(h)
	s.staging, err = d.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("tile_staging_%d", i),
		Size:  readbackSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		b.destroySlot(s)
		return nil, fmt.Errorf("wgpu: create slot %d staging buffer: %w", i, err)
	}

	s.readback = make([]byte, readbackSize)
	s.rgb = make([]byte, b.scene.Tile.ByteSize())
	return s, nil
}

// Depth implements backend.Backend.
func (b *Backend) Depth() int { return b.arena.Size() }

// TileSize implements backend.Backend.
func (b *Backend) TileSize() tile.Size { return b.scene.Tile }

// Submit implements backend.Backend.
func (b *Backend) Submit(ctx context.Context, req backend.Request) (backend.Ticket, error) {
	if b.closed {
		return 0, backend.ErrClosed
	}
	sl, err := b.arena.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	if err := b.encode(b.slots[sl.Index], req); err != nil {
		_ = b.arena.Cancel(sl)
		return 0, err
	}
	return sl.Ticket, nil
}

// encode records and submits the render pass and readback copy of one tile.
func (b *Backend) encode(s *slot, req backend.Request) error {
	d, q := b.dev.device, b.dev.queue
	w := uint32(b.scene.Tile.Width)  //nolint:gosec // validated positive
	h := uint32(b.scene.Tile.Height) //nolint:gosec // validated positive

	q.WriteBuffer(s.uniform, 0, sceneUniform(b.scene.Resolution, req))

	encoder, err := d.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "tile_encoder"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("tile"); err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "tile_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       s.view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	rp.SetPipeline(b.pipeline)
	rp.SetBindGroup(0, s.bind, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: s.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(s.tex, s.staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: b.stride, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: s.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	cmd, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	fence, err := d.CreateFence()
	if err != nil {
		d.FreeCommandBuffer(cmd)
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	if err := q.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		d.DestroyFence(fence)
		d.FreeCommandBuffer(cmd)
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	s.cmd, s.fence = cmd, fence
	return nil
}

// sceneUniform packs the Scene uniform of prelude.wgsl.
func sceneUniform(res tile.Size, req backend.Request) []byte {
	buf := make([]byte, uniformSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(res.Width)))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(res.Height)))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(float32(req.Origin.X)))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(float32(req.Origin.Y)))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(float32(req.Time)))
	// Padding bytes 20..31 remain zero.
	return buf
}

// Retrieve implements backend.Backend. The wait on the GPU fence is bounded
// by the backend timeout; ctx is checked before waiting.
func (b *Backend) Retrieve(ctx context.Context) (backend.Result, error) {
	if b.closed {
		return backend.Result{}, backend.ErrClosed
	}
	sl, ok := b.arena.Oldest()
	if !ok {
		return backend.Result{}, backend.ErrNothingInFlight
	}
	if err := ctx.Err(); err != nil {
		return backend.Result{}, fmt.Errorf("wgpu: waiting for tile %s: %w", sl.Ticket, err)
	}
	s := b.slots[sl.Index]

	done, err := b.dev.device.Wait(s.fence, 1, b.timeout)
	if err != nil {
		return backend.Result{Ticket: sl.Ticket}, fmt.Errorf("wgpu: wait for tile %s: %w", sl.Ticket, err)
	}
	if !done {
		return backend.Result{Ticket: sl.Ticket}, fmt.Errorf("%w: tile %s after %v", backend.ErrTimeout, sl.Ticket, b.timeout)
	}

	readErr := b.dev.queue.ReadBuffer(s.staging, 0, s.readback)
	b.finish(s)
	if err := b.arena.Release(sl); err != nil {
		return backend.Result{}, err
	}
	if readErr != nil {
		return backend.Result{Ticket: sl.Ticket}, fmt.Errorf("wgpu: readback tile %s: %w", sl.Ticket, readErr)
	}

	ts := b.scene.Tile
	if _, err := tile.RGBAToRGB(s.rgb, s.readback, ts.Width, ts.Height, int(b.stride)); err != nil {
		return backend.Result{Ticket: sl.Ticket}, err
	}
	return backend.Result{Ticket: sl.Ticket, Size: ts, Pixels: s.rgb}, nil
}

// finish frees the per-submission command buffer and fence of s.
func (b *Backend) finish(s *slot) {
	if s.cmd != nil {
		b.dev.device.FreeCommandBuffer(s.cmd)
		s.cmd = nil
	}
	if s.fence != nil {
		b.dev.device.DestroyFence(s.fence)
		s.fence = nil
	}
}

// Close waits for in-flight tiles, then releases every GPU resource and the
// device if the backend opened it. It is safe to call more than once.
func (b *Backend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	for _, sl := range b.arena.Pending() {
		s := b.slots[sl.Index]
		if s.fence != nil {
			if ok, err := b.dev.device.Wait(s.fence, 1, b.timeout); err != nil || !ok {
				backend.Logger().Warn("wgpu: in-flight tile did not finish before close",
					"ticket", sl.Ticket, "err", err)
			}
		}
		b.finish(s)
	}
	b.destroy()
	return nil
}

// destroy releases pipeline, slot and device resources. Safe on a partially
// constructed backend.
func (b *Backend) destroy() {
	d := b.dev.device
	for _, s := range b.slots {
		b.finish(s)
		b.destroySlot(s)
	}
	b.slots = nil
	if b.pipeline != nil {
		d.DestroyRenderPipeline(b.pipeline)
		b.pipeline = nil
	}
	if b.pipeLayout != nil {
		d.DestroyPipelineLayout(b.pipeLayout)
		b.pipeLayout = nil
	}
	if b.bindLayout != nil {
		d.DestroyBindGroupLayout(b.bindLayout)
		b.bindLayout = nil
	}
	if b.module != nil {
		d.DestroyShaderModule(b.module)
		b.module = nil
	}
	b.dev.release()
}

func (b *Backend) destroySlot(s *slot) {
	d := b.dev.device
	if s.bind != nil {
		d.DestroyBindGroup(s.bind)
		s.bind = nil
	}
	if s.uniform != nil {
		d.DestroyBuffer(s.uniform)
		s.uniform = nil
	}
	if s.staging != nil {
		d.DestroyBuffer(s.staging)
		s.staging = nil
	}
	if s.view != nil {
		d.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.tex != nil {
		d.DestroyTexture(s.tex)
		s.tex = nil
	}
}
