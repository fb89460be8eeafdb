package occlusion

import "sync"

// probeJob is one listener/target evaluation handed to the pool.
type probeJob struct {
	target     Vec3
	visibility float64
	hits       int
}

// probePool evaluates probe jobs on a fixed set of goroutines. Worker i takes
// jobs i, i+n, i+2n... so results land in job order regardless of scheduling.
type probePool struct {
	probe *Probe
	count int

	mu      sync.Mutex
	cond    *sync.Cond
	step    int
	pending int
	closed  bool

	listener Pose
	params   ProbeParams
	jobs     []probeJob
}

func newProbePool(probe *Probe, workers int) *probePool {
	if workers < 1 {
		workers = 1
	}
	p := &probePool{probe: probe, count: workers}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		go p.workerLoop(i)
	}
	return p
}

// workerLoop waits for each new step, evaluates its share of jobs, and
// reports completion.
func (p *probePool) workerLoop(index int) {
	var scratch []Ray
	lastStep := 0
	p.mu.Lock()
	for {
		for p.step == lastStep && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		lastStep = p.step
		jobs := p.jobs
		listener := p.listener
		params := p.params
		p.mu.Unlock()

		for i := index; i < len(jobs); i += p.count {
			job := &jobs[i]
			job.visibility, job.hits, scratch = p.probe.evaluate(listener, job.target, params, scratch)
		}

		p.mu.Lock()
		p.pending--
		if p.pending == 0 {
			p.cond.Broadcast()
		}
	}
}

// run blocks until every job has been evaluated.
func (p *probePool) run(listener Pose, params ProbeParams, jobs []probeJob) {
	if len(jobs) == 0 {
		return
	}
	p.mu.Lock()
	p.listener = listener
	p.params = params
	p.jobs = jobs
	p.pending = p.count
	p.step++
	p.cond.Broadcast()
	for p.pending > 0 {
		p.cond.Wait()
	}
	p.jobs = nil
	p.mu.Unlock()
}

func (p *probePool) close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}
