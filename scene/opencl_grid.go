//go:build opencl

package scene

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"SoundOcclusion/occlusion"
)

const rayStride = 5

const gridKernelSource = `__kernel void grid_cast(
    const int width,
    const int height,
    __global const int* cells,
    __global const float* rays,
    __global float* hits,
    const int ray_count,
    const int layers)
{
    int gid = get_global_id(0);
    if (gid >= ray_count) {
        return;
    }
    int base = gid * 5;
    float ox = rays[base];
    float oz = rays[base + 1];
    float dx = rays[base + 2];
    float dz = rays[base + 3];
    float max_dist = rays[base + 4];
    hits[gid] = 0.0f;
    if (!isfinite(ox) || !isfinite(oz) || !isfinite(dx) || !isfinite(dz) || isnan(max_dist) || (dx == 0.0f && dz == 0.0f)) {
        return;
    }

    float t_max_x = INFINITY;
    float t_max_z = INFINITY;
    float t_delta_x = INFINITY;
    float t_delta_z = INFINITY;
    int step_x = dx > 0.0f ? 1 : (dx < 0.0f ? -1 : 0);
    int step_z = dz > 0.0f ? 1 : (dz < 0.0f ? -1 : 0);
    float px = ox;
    float pz = oz;
    float t_enter = 0.0f;
    int inside = ox >= 0.0f && ox < (float)width && oz >= 0.0f && oz < (float)height;
    if (!inside) {
        float t_exit = INFINITY;
        if (dx == 0.0f) {
            if (ox < 0.0f || ox >= (float)width) {
                return;
            }
        } else {
            float t1 = -ox / dx;
            float t2 = ((float)width - ox) / dx;
            t_enter = fmax(t_enter, fmin(t1, t2));
            t_exit = fmin(t_exit, fmax(t1, t2));
        }
        if (dz == 0.0f) {
            if (oz < 0.0f || oz >= (float)height) {
                return;
            }
        } else {
            float t1 = -oz / dz;
            float t2 = ((float)height - oz) / dz;
            t_enter = fmax(t_enter, fmin(t1, t2));
            t_exit = fmin(t_exit, fmax(t1, t2));
        }
        if (!(t_enter < t_exit) || t_enter > max_dist) {
            return;
        }
        px = ox + dx * t_enter;
        pz = oz + dz * t_enter;
    }
    int cx = clamp((int)floor(px), 0, width - 1);
    int cz = clamp((int)floor(pz), 0, height - 1);
    if (step_x > 0) {
        t_max_x = t_enter + ((float)cx + 1.0f - px) / dx;
        t_delta_x = 1.0f / dx;
    } else if (step_x < 0) {
        t_max_x = t_enter + (px - (float)cx) / -dx;
        t_delta_x = 1.0f / -dx;
    }
    if (step_z > 0) {
        t_max_z = t_enter + ((float)cz + 1.0f - pz) / dz;
        t_delta_z = 1.0f / dz;
    } else if (step_z < 0) {
        t_max_z = t_enter + (pz - (float)cz) / -dz;
        t_delta_z = 1.0f / -dz;
    }
    if (!inside && (cells[cz * width + cx] & layers) != 0) {
        hits[gid] = 1.0f;
        return;
    }

    for (;;) {
        float t;
        if (t_max_x < t_max_z) {
            t = t_max_x;
            cx += step_x;
            t_max_x += t_delta_x;
        } else {
            t = t_max_z;
            cz += step_z;
            t_max_z += t_delta_z;
        }
        if (t > max_dist || cx < 0 || cx >= width || cz < 0 || cz >= height) {
            return;
        }
        if ((cells[cz * width + cx] & layers) != 0) {
            hits[gid] = 1.0f;
            return;
        }
    }
}`

// CLGrid answers batched grid raycasts on an OpenCL device. Single rays fall
// back to the CPU traversal of the wrapped Grid.
type CLGrid struct {
	grid *Grid

	mu         sync.Mutex
	context    *cl.Context
	queue      *cl.CommandQueue
	program    *cl.Program
	kernel     *cl.Kernel
	cellBuf    *cl.MemObject
	rayBuf     *cl.MemObject
	hitBuf     *cl.MemObject
	capacity   int
	synced     bool
	version    uint64
	cellData   []int32
	rayData    []float32
	hitData    []float32
	deviceName string
}

func pickDevice() (*cl.Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available; ensure a vendor driver is installed and detected by `clinfo`")
	}
	for _, kind := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		for _, p := range platforms {
			devices, derr := p.GetDevices(kind)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				return devices[0], nil
			}
		}
	}
	return nil, errors.New("no suitable OpenCL devices found")
}

// NewCLGrid compiles the traversal kernel for the first usable device.
func NewCLGrid(g *Grid) (*CLGrid, error) {
	device, err := pickDevice()
	if err != nil {
		return nil, err
	}
	c := &CLGrid{grid: g, deviceName: device.Name()}

	c.context, err = cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	c.queue, err = c.context.CreateCommandQueue(device, 0)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	c.program, err = c.context.CreateProgramWithSource([]string{gridKernelSource})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := c.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		c.Close()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}
	c.kernel, err = c.program.CreateKernel("grid_cast")
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating OpenCL kernel: %w", err)
	}
	width, height := g.Size()
	c.cellBuf, err = c.context.CreateEmptyBuffer(cl.MemReadOnly, width*height*int(unsafe.Sizeof(int32(0))))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("allocating cell buffer: %w", err)
	}
	if err := c.ensureCapacity(64); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.kernel.SetArgs(
		int32(width),
		int32(height),
		c.cellBuf,
		c.rayBuf,
		c.hitBuf,
		int32(0),
		int32(0),
	); err != nil {
		c.Close()
		return nil, fmt.Errorf("setting kernel arguments: %w", err)
	}
	return c, nil
}

// Raycast runs a single ray on the CPU.
func (c *CLGrid) Raycast(origin, direction occlusion.Vec3, maxDistance float64, layers occlusion.LayerMask) bool {
	return c.grid.Raycast(origin, direction, maxDistance, layers)
}

// RaycastBatch traces every ray in one kernel launch.
func (c *CLGrid) RaycastBatch(rays []occlusion.Ray, layers occlusion.LayerMask, hits []bool) error {
	if len(hits) < len(rays) {
		return fmt.Errorf("hit buffer holds %d of %d rays", len(hits), len(rays))
	}
	if len(rays) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kernel == nil {
		return errors.New("OpenCL grid is closed")
	}

	if err := c.syncCells(); err != nil {
		return err
	}
	if len(rays) > c.capacity {
		if err := c.ensureCapacity(len(rays) * 2); err != nil {
			return err
		}
		if err := c.kernel.SetArgBuffer(3, c.rayBuf); err != nil {
			return fmt.Errorf("binding ray buffer: %w", err)
		}
		if err := c.kernel.SetArgBuffer(4, c.hitBuf); err != nil {
			return fmt.Errorf("binding hit buffer: %w", err)
		}
	}

	cs := c.grid.CellSize()
	data := c.rayData[:len(rays)*rayStride]
	for i, r := range rays {
		d := r.Direction.Norm()
		base := i * rayStride
		data[base] = float32(r.Origin.X / cs)
		data[base+1] = float32(r.Origin.Z / cs)
		data[base+2] = float32(d.X)
		data[base+3] = float32(d.Z)
		data[base+4] = float32(r.MaxDistance / cs)
	}
	if _, err := c.queue.EnqueueWriteBufferFloat32(c.rayBuf, true, 0, data, nil); err != nil {
		return fmt.Errorf("writing ray buffer: %w", err)
	}
	if err := c.kernel.SetArgInt32(5, int32(len(rays))); err != nil {
		return fmt.Errorf("setting ray count: %w", err)
	}
	if err := c.kernel.SetArgInt32(6, int32(layers)); err != nil {
		return fmt.Errorf("setting layer mask: %w", err)
	}
	if _, err := c.queue.EnqueueNDRangeKernel(c.kernel, nil, []int{len(rays)}, nil, nil); err != nil {
		return fmt.Errorf("enqueueing kernel: %w", err)
	}
	out := c.hitData[:len(rays)]
	if _, err := c.queue.EnqueueReadBufferFloat32(c.hitBuf, true, 0, out, nil); err != nil {
		return fmt.Errorf("reading hit buffer: %w", err)
	}
	for i, v := range out {
		hits[i] = v != 0
	}
	return nil
}

func (c *CLGrid) syncCells() error {
	if c.synced && c.version == c.grid.Version() {
		return nil
	}
	cells := c.grid.cells
	if cap(c.cellData) < len(cells) {
		c.cellData = make([]int32, len(cells))
	}
	c.cellData = c.cellData[:len(cells)]
	for i, l := range cells {
		c.cellData[i] = int32(l)
	}
	ptr := unsafe.Pointer(&c.cellData[0])
	byteLen := len(c.cellData) * int(unsafe.Sizeof(int32(0)))
	if _, err := c.queue.EnqueueWriteBuffer(c.cellBuf, true, 0, byteLen, ptr, nil); err != nil {
		return fmt.Errorf("writing cell buffer: %w", err)
	}
	c.synced = true
	c.version = c.grid.Version()
	return nil
}

func (c *CLGrid) ensureCapacity(n int) error {
	if n <= c.capacity {
		return nil
	}
	rayBuf, err := c.context.CreateEmptyBuffer(cl.MemReadOnly, n*rayStride*int(unsafe.Sizeof(float32(0))))
	if err != nil {
		return fmt.Errorf("allocating ray buffer: %w", err)
	}
	hitBuf, err := c.context.CreateEmptyBuffer(cl.MemWriteOnly, n*int(unsafe.Sizeof(float32(0))))
	if err != nil {
		rayBuf.Release()
		return fmt.Errorf("allocating hit buffer: %w", err)
	}
	if c.rayBuf != nil {
		c.rayBuf.Release()
	}
	if c.hitBuf != nil {
		c.hitBuf.Release()
	}
	c.rayBuf, c.hitBuf = rayBuf, hitBuf
	c.rayData = make([]float32, n*rayStride)
	c.hitData = make([]float32, n)
	c.capacity = n
	return nil
}

// Close releases every device object. The grid stays usable for single rays.
func (c *CLGrid) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hitBuf != nil {
		c.hitBuf.Release()
		c.hitBuf = nil
	}
	if c.rayBuf != nil {
		c.rayBuf.Release()
		c.rayBuf = nil
	}
	if c.cellBuf != nil {
		c.cellBuf.Release()
		c.cellBuf = nil
	}
	if c.kernel != nil {
		c.kernel.Release()
		c.kernel = nil
	}
	if c.program != nil {
		c.program.Release()
		c.program = nil
	}
	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.context != nil {
		c.context.Release()
		c.context = nil
	}
	c.capacity = 0
}

// DeviceName names the device running the kernel.
func (c *CLGrid) DeviceName() string { return c.deviceName }
