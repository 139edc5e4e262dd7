//  Copyright 2023 Stealth Rocket, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wasmo

import (
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/pprof/profile"
)

// CPUProfiler is a FunctionListener recording samples of time spent in
// functions executed by the interpreter.
//
// The profiler generates samples of two types:
// - "cpu" records the time spent in function calls (in nanoseconds).
// - "samples" counts the number of function calls.
type CPUProfiler struct {
	mutex  sync.Mutex
	counts stackCounterMap
	mod    *Module
	stack  []int
	frames []cpuTimeFrame
	time   func() int64
	start  time.Time
}

// CPUProfilerOption is a type used to represent configuration options for
// CPUProfiler instances created by NewCPUProfiler.
type CPUProfilerOption func(*CPUProfiler)

// TimeFunc configures the time function used by the CPU profiler to collect
// monotonic timestamps.
//
// By default, the system clock is used.
func TimeFunc(time func() int64) CPUProfilerOption {
	return func(p *CPUProfiler) { p.time = time }
}

type cpuTimeFrame struct {
	start int64
	trace stackTrace
}

// NewCPUProfiler constructs a new instance of CPUProfiler using the given
// time function to record the CPU time consumed.
func NewCPUProfiler(options ...CPUProfilerOption) *CPUProfiler {
	p := &CPUProfiler{
		time: func() int64 { return time.Now().UnixNano() },
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// StartProfile begins recording the CPU profile. The method returns a
// boolean to indicate whether starting the profile succeeded (e.g. false is
// returned if it was already started).
func (p *CPUProfiler) StartProfile() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.counts != nil {
		return false // already started
	}

	p.counts = make(stackCounterMap)
	p.start = time.Now()
	return true
}

// StopProfile stops recording and returns the CPU profile. The method
// returns nil if recording of the CPU profile wasn't started.
func (p *CPUProfiler) StopProfile() *profile.Profile {
	p.mutex.Lock()
	samples, start, mod := p.counts, p.start, p.mod
	p.counts = nil
	p.mutex.Unlock()

	if samples == nil {
		return nil
	}

	duration := time.Since(start)

	return buildProfile(mod, samples, start, duration,
		[]*profile.ValueType{
			{Type: "cpu", Unit: "nanoseconds"},
			{Type: "samples", Unit: "count"},
		},
	)
}

// Before implements FunctionListener.
func (p *CPUProfiler) Before(mod *Module, fn *Function) {
	var frame cpuTimeFrame
	p.mutex.Lock()

	p.mod = mod
	p.stack = append(p.stack, fn.Index())
	if p.counts != nil {
		frame = cpuTimeFrame{
			start: p.time(),
			trace: makeStackTrace(p.stack),
		}
	}

	p.mutex.Unlock()
	p.frames = append(p.frames, frame)
}

// After implements FunctionListener.
func (p *CPUProfiler) After(mod *Module, fn *Function, err error) {
	i := len(p.frames) - 1
	f := p.frames[i]
	p.frames = p.frames[:i]

	p.mutex.Lock()
	if n := len(p.stack); n > 0 {
		p.stack = p.stack[:n-1]
	}
	if f.start != 0 && p.counts != nil {
		p.counts.observe(f.trace, p.time()-f.start)
	}
	p.mutex.Unlock()
}

var _ FunctionListener = (*CPUProfiler)(nil)

// MemoryProfiler is a FunctionListener attributing linear memory store
// traffic to the call stack performing it.
type MemoryProfiler struct {
	mutex  sync.Mutex
	counts stackCounterMap
	mod    *Module
	stack  []int
	start  time.Time
}

// NewMemoryProfiler constructs a new instance of MemoryProfiler.
func NewMemoryProfiler() *MemoryProfiler {
	return &MemoryProfiler{
		counts: make(stackCounterMap),
		start:  time.Now(),
	}
}

// Before implements FunctionListener.
func (p *MemoryProfiler) Before(mod *Module, fn *Function) {
	p.mutex.Lock()
	p.mod = mod
	p.stack = append(p.stack, fn.Index())
	p.mutex.Unlock()
}

// After implements FunctionListener.
func (p *MemoryProfiler) After(mod *Module, fn *Function, err error) {
	p.mutex.Lock()
	if n := len(p.stack); n > 0 {
		p.stack = p.stack[:n-1]
	}
	p.mutex.Unlock()
}

// OnStore implements MemoryListener.
func (p *MemoryProfiler) OnStore(mod *Module, size int) {
	p.mutex.Lock()
	p.counts.observe(makeStackTrace(p.stack), int64(size))
	p.mutex.Unlock()
}

// NewProfile returns the store traffic recorded so far.
func (p *MemoryProfiler) NewProfile() *profile.Profile {
	p.mutex.Lock()
	samples, start, mod := p.counts, p.start, p.mod
	p.mutex.Unlock()

	return buildProfile(mod, samples, start, time.Since(start),
		[]*profile.ValueType{
			{Type: "stores", Unit: "count"},
			{Type: "store_space", Unit: "bytes"},
		},
	)
}

var (
	_ FunctionListener = (*MemoryProfiler)(nil)
	_ MemoryListener   = (*MemoryProfiler)(nil)
)

// WriteProfile writes a profile to a file at the given path.
func WriteProfile(path string, prof *profile.Profile) error {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()
	return prof.Write(w)
}

type stackCounterMap map[uint64]*stackCounter

func (scm stackCounterMap) lookup(st stackTrace) *stackCounter {
	sc := scm[st.key]
	if sc == nil {
		sc = &stackCounter{stack: st}
		scm[st.key] = sc
	}
	return sc
}

func (scm stackCounterMap) observe(st stackTrace, val int64) {
	scm.lookup(st).observe(val)
}

type stackCounter struct {
	stack stackTrace
	value [2]int64 // count, total
}

func (sc *stackCounter) observe(value int64) {
	sc.value[0] += 1
	sc.value[1] += value
}

func (sc *stackCounter) String() string {
	return fmt.Sprintf("{count:%d,total:%d}", sc.value[0], sc.value[1])
}

// stackTrace is a snapshot of the active function indices, innermost last.
type stackTrace struct {
	fns []int
	key uint64
}

func makeStackTrace(stack []int) stackTrace {
	st := stackTrace{fns: slices.Clone(stack)}
	b := make([]byte, 0, 8*len(st.fns))
	for _, fn := range st.fns {
		b = binary.LittleEndian.AppendUint64(b, uint64(fn))
	}
	st.key = maphash.Bytes(stackTraceHashSeed, b)
	return st
}

var stackTraceHashSeed = maphash.MakeSeed()

func buildProfile(mod *Module, samples stackCounterMap, start time.Time, duration time.Duration, sampleType []*profile.ValueType) *profile.Profile {
	prof := &profile.Profile{
		SampleType:    sampleType,
		Sample:        make([]*profile.Sample, 0, len(samples)),
		TimeNanos:     start.UnixNano(),
		DurationNanos: int64(duration),
	}

	locationID := uint64(1)
	locationCache := make(map[int]*profile.Location)
	functionCache := make(map[int]*profile.Function)

	for _, sample := range samples {
		stack := sample.stack
		location := make([]*profile.Location, 0, len(stack.fns))

		// Pprof expects leaf frames first.
		for i := len(stack.fns) - 1; i >= 0; i-- {
			index := stack.fns[i]
			loc := locationCache[index]
			if loc == nil {
				fn := functionCache[index]
				if fn == nil {
					fn = &profile.Function{
						ID:   uint64(len(functionCache)) + 1, // 0 is reserved by pprof
						Name: functionName(mod, index),
					}
					functionCache[index] = fn
				}
				loc = &profile.Location{
					ID:   locationID,
					Line: []profile.Line{{Function: fn}},
				}
				locationID++
				locationCache[index] = loc
			}
			location = append(location, loc)
		}

		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: location,
			Value:    sample.value[:len(sampleType)],
		})
	}

	prof.Location = make([]*profile.Location, len(locationCache))
	prof.Function = make([]*profile.Function, len(functionCache))

	for _, loc := range locationCache {
		prof.Location[loc.ID-1] = loc
	}
	for _, fn := range functionCache {
		prof.Function[fn.ID-1] = fn
	}
	return prof
}

func functionName(mod *Module, index int) string {
	if mod == nil || index >= len(mod.funcs) {
		return fmt.Sprintf("func[%d]", index)
	}
	return mod.funcs[index].name
}
