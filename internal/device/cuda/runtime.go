//go:build cuda

package cuda

/*
#cgo LDFLAGS: -lcudart -lcuda

#include <stdlib.h>

// Minimal CUDA runtime and driver forward declarations to avoid requiring
// headers at compile time. Linking still requires libcudart and libcuda.
typedef void* cudaStream_t;
typedef int cudaError_t;
typedef int CUresult;
typedef void* CUmodule;
typedef void* CUfunction;

extern const char* cudaGetErrorString(cudaError_t err);
extern cudaError_t cudaGetDeviceCount(int* count);
extern cudaError_t cudaSetDevice(int device);
extern cudaError_t cudaFree(void* ptr);
extern cudaError_t cudaMalloc(void** ptr, unsigned long long size);
extern cudaError_t cudaMallocHost(void** ptr, unsigned long long size);
extern cudaError_t cudaFreeHost(void* ptr);
extern cudaError_t cudaStreamCreate(cudaStream_t* stream);
extern cudaError_t cudaStreamDestroy(cudaStream_t stream);
extern cudaError_t cudaStreamSynchronize(cudaStream_t stream);
extern cudaError_t cudaDeviceSynchronize(void);
extern cudaError_t cudaMemcpyAsync(void* dst, const void* src, unsigned long long size, int kind, cudaStream_t stream);
extern cudaError_t cudaMemGetInfo(unsigned long long* free, unsigned long long* total);

extern CUresult cuGetErrorString(CUresult err, const char** str);
extern CUresult cuModuleLoadData(CUmodule* module, const void* image);
extern CUresult cuModuleUnload(CUmodule module);
extern CUresult cuModuleGetFunction(CUfunction* fn, CUmodule module, const char* name);
extern CUresult cuLaunchKernel(CUfunction f,
	unsigned int gridDimX, unsigned int gridDimY, unsigned int gridDimZ,
	unsigned int blockDimX, unsigned int blockDimY, unsigned int blockDimZ,
	unsigned int sharedMemBytes, cudaStream_t stream, void** kernelParams, void** extra);

#define VECSTREAM_MEMCPY_HOST_TO_DEVICE 1
#define VECSTREAM_MEMCPY_DEVICE_TO_HOST 2

static const char* vsCudaGetErrorString(int err) {
	return cudaGetErrorString((cudaError_t)err);
}

static const char* vsCuGetErrorString(int err) {
	const char* s = 0;
	if (cuGetErrorString((CUresult)err, &s) != 0 || s == 0) {
		return "unknown driver error";
	}
	return s;
}

static int vsCudaGetDeviceCount(int* out) {
	return (int)cudaGetDeviceCount(out);
}

// cudaFree(0) forces creation of the primary context so the driver API
// calls below find a current context.
static int vsCudaInit(int device) {
	cudaError_t err = cudaSetDevice(device);
	if (err != 0) {
		return (int)err;
	}
	return (int)cudaFree(0);
}

static int vsCudaMemGetInfo(unsigned long long* free, unsigned long long* total) {
	return (int)cudaMemGetInfo(free, total);
}

static int vsCudaStreamCreate(cudaStream_t* out) {
	return (int)cudaStreamCreate(out);
}

static int vsCudaStreamDestroy(cudaStream_t stream) {
	return (int)cudaStreamDestroy(stream);
}

static int vsCudaStreamSynchronize(cudaStream_t stream) {
	return (int)cudaStreamSynchronize(stream);
}

static int vsCudaDeviceSynchronize(void) {
	return (int)cudaDeviceSynchronize();
}

static int vsCudaMalloc(void** ptr, unsigned long long size) {
	return (int)cudaMalloc(ptr, size);
}

static int vsCudaFree(void* ptr) {
	return (int)cudaFree(ptr);
}

static int vsCudaMallocHost(void** ptr, unsigned long long size) {
	return (int)cudaMallocHost(ptr, size);
}

static int vsCudaFreeHost(void* ptr) {
	return (int)cudaFreeHost(ptr);
}

static int vsCudaMemcpyAsync(void* dst, const void* src, unsigned long long size, int kind, cudaStream_t stream) {
	return (int)cudaMemcpyAsync(dst, src, size, kind, stream);
}

static int vsCuModuleLoadData(CUmodule* module, const char* image) {
	return (int)cuModuleLoadData(module, (const void*)image);
}

static int vsCuModuleUnload(CUmodule module) {
	return (int)cuModuleUnload(module);
}

static int vsCuModuleGetFunction(CUfunction* fn, CUmodule module, const char* name) {
	return (int)cuModuleGetFunction(fn, module, name);
}

static int vsLaunchVecAdd(CUfunction fn, unsigned int grid, unsigned int block, cudaStream_t stream,
	void* in1, void* in2, void* out, int len) {
	void* args[4] = { &in1, &in2, &out, &len };
	return (int)cuLaunchKernel(fn, grid, 1, 1, block, 1, 1, 0, stream, args, 0);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type nativeStream struct {
	ptr C.cudaStream_t
}

type deviceMem struct {
	ptr unsafe.Pointer
}

type hostMem struct {
	ptr unsafe.Pointer
}

type module struct {
	mod C.CUmodule
	fn  C.CUfunction
}

func deviceCount() (int, error) {
	var count C.int
	if err := cudaErr(C.vsCudaGetDeviceCount(&count)); err != nil {
		return 0, err
	}
	return int(count), nil
}

func initDevice(ordinal int) error {
	return cudaErr(C.vsCudaInit(C.int(ordinal)))
}

func memInfo() (free, total uint64, err error) {
	var f, t C.ulonglong
	if err := cudaErr(C.vsCudaMemGetInfo(&f, &t)); err != nil {
		return 0, 0, err
	}
	return uint64(f), uint64(t), nil
}

func streamCreate() (nativeStream, error) {
	var s C.cudaStream_t
	if err := cudaErr(C.vsCudaStreamCreate(&s)); err != nil {
		return nativeStream{}, err
	}
	return nativeStream{ptr: s}, nil
}

func (s nativeStream) destroy() error {
	return cudaErr(C.vsCudaStreamDestroy(s.ptr))
}

func (s nativeStream) synchronize() error {
	return cudaErr(C.vsCudaStreamSynchronize(s.ptr))
}

func deviceSynchronize() error {
	return cudaErr(C.vsCudaDeviceSynchronize())
}

func malloc(bytes int64) (deviceMem, error) {
	if bytes <= 0 {
		return deviceMem{}, fmt.Errorf("device alloc size must be > 0")
	}
	var ptr unsafe.Pointer
	if err := cudaErr(C.vsCudaMalloc(&ptr, C.ulonglong(bytes))); err != nil {
		return deviceMem{}, err
	}
	return deviceMem{ptr: ptr}, nil
}

func (m deviceMem) free() error {
	return cudaErr(C.vsCudaFree(m.ptr))
}

func mallocHost(bytes int64) (hostMem, error) {
	if bytes <= 0 {
		return hostMem{}, nil
	}
	var ptr unsafe.Pointer
	if err := cudaErr(C.vsCudaMallocHost(&ptr, C.ulonglong(bytes))); err != nil {
		return hostMem{}, err
	}
	return hostMem{ptr: ptr}, nil
}

func (m hostMem) free() error {
	if m.ptr == nil {
		return nil
	}
	return cudaErr(C.vsCudaFreeHost(m.ptr))
}

func memcpyH2DAsync(dst unsafe.Pointer, src unsafe.Pointer, bytes int64, s nativeStream) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.vsCudaMemcpyAsync(dst, src, C.ulonglong(bytes), C.VECSTREAM_MEMCPY_HOST_TO_DEVICE, s.ptr))
}

func memcpyD2HAsync(dst unsafe.Pointer, src unsafe.Pointer, bytes int64, s nativeStream) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.vsCudaMemcpyAsync(dst, src, C.ulonglong(bytes), C.VECSTREAM_MEMCPY_DEVICE_TO_HOST, s.ptr))
}

func loadModule(ptx, entry string) (module, error) {
	image := C.CString(ptx)
	defer C.free(unsafe.Pointer(image))
	name := C.CString(entry)
	defer C.free(unsafe.Pointer(name))

	var m module
	if err := cuErr(C.vsCuModuleLoadData(&m.mod, image)); err != nil {
		return module{}, fmt.Errorf("load ptx: %w", err)
	}
	if err := cuErr(C.vsCuModuleGetFunction(&m.fn, m.mod, name)); err != nil {
		_ = cuErr(C.vsCuModuleUnload(m.mod))
		return module{}, fmt.Errorf("get function %q: %w", entry, err)
	}
	return m, nil
}

func (m module) unload() error {
	return cuErr(C.vsCuModuleUnload(m.mod))
}

func (m module) launchVecAdd(grid, block int, s nativeStream, in1, in2, out deviceMem, n int) error {
	return cuErr(C.vsLaunchVecAdd(m.fn, C.uint(grid), C.uint(block), s.ptr, in1.ptr, in2.ptr, out.ptr, C.int(n)))
}

func cudaErr(code C.int) error {
	if code == 0 {
		return nil
	}
	msg := C.GoString(C.vsCudaGetErrorString(code))
	return fmt.Errorf("cuda runtime error %d: %s", int(code), msg)
}

func cuErr(code C.int) error {
	if code == 0 {
		return nil
	}
	msg := C.GoString(C.vsCuGetErrorString(code))
	return fmt.Errorf("cuda driver error %d: %s", int(code), msg)
}
