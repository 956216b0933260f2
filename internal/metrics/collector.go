package metrics

import (
	"strconv"

	"github.com/5g-empower/empower-agent/internal/element"
	"github.com/5g-empower/empower-agent/internal/router"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "empower_agent"

// Dropper is implemented by elements that count discarded packets.
type Dropper interface {
	Drops() uint64
}

// Collector implements prometheus.Collector over a router.
type Collector struct {
	current func() *router.Router

	hotswaps    prometheus.Counter
	state       *prometheus.Desc
	threads     *prometheus.Desc
	runCount    *prometheus.Desc
	sweeps      *prometheus.Desc
	depthDrops  *prometheus.Desc
	portPackets *prometheus.Desc
	drops       *prometheus.Desc
	queueSize   *prometheus.Desc
	queueCap    *prometheus.Desc
	taskRuns    *prometheus.Desc
	taskTickets *prometheus.Desc
	timerFires  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector reading whatever router current returns.
// current may return nil while no router is installed.
func NewCollector(current func() *router.Router) *Collector {
	elemLabels := []string{"element", "class"}
	return &Collector{
		current: current,
		hotswaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "hotswaps_total",
			Help:      "Number of successful router hot swaps.",
		}),
		state: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "router", "state"),
			"Router lifecycle state (0=new, 1=preinitialized, 2=initializing, 3=live, 4=dead, 5=cleaned).",
			nil, nil),
		threads: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "driver", "threads"),
			"Number of driver threads.",
			nil, nil),
		runCount: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "driver", "run_count"),
			"Driver run count; the driver pauses when it drops to zero.",
			nil, nil),
		sweeps: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "driver", "sweeps_total"),
			"Driver loop iterations over all threads.",
			nil, nil),
		depthDrops: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "router", "depth_drops_total"),
			"Packets dropped because port traversal exceeded the maximum depth.",
			nil, nil),
		portPackets: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "port", "packets_total"),
			"Packets moved through an active port.",
			[]string{"element", "class", "direction", "port"}, nil),
		drops: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "element", "drops_total"),
			"Packets discarded by an element.",
			elemLabels, nil),
		queueSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "storage", "packets"),
			"Packets held by a storage element.",
			elemLabels, nil),
		queueCap: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "storage", "capacity"),
			"Capacity of a storage element.",
			elemLabels, nil),
		taskRuns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "task", "runs_total"),
			"Task callback invocations.",
			[]string{"element", "class", "task"}, nil),
		taskTickets: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "task", "tickets"),
			"Task scheduling tickets.",
			[]string{"element", "class", "task"}, nil),
		timerFires: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "timer", "fires_total"),
			"Timer expirations.",
			[]string{"element", "class", "timer"}, nil),
	}
}

// Hotswapped counts a successful hot swap.
func (c *Collector) Hotswapped() { c.hotswaps.Inc() }

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.hotswaps.Describe(ch)
	for _, d := range []*prometheus.Desc{
		c.state, c.threads, c.runCount, c.sweeps, c.depthDrops, c.portPackets,
		c.drops, c.queueSize, c.queueCap, c.taskRuns, c.taskTickets, c.timerFires,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.hotswaps.Collect(ch)
	r := c.current()
	if r == nil {
		return
	}
	m := r.Master()
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(r.State()))
	ch <- prometheus.MustNewConstMetric(c.threads, prometheus.GaugeValue, float64(m.NThreads()))
	ch <- prometheus.MustNewConstMetric(c.runCount, prometheus.GaugeValue, float64(m.RunCount()))
	ch <- prometheus.MustNewConstMetric(c.sweeps, prometheus.CounterValue, float64(m.Sweeps()))
	ch <- prometheus.MustNewConstMetric(c.depthDrops, prometheus.CounterValue, float64(r.DepthDrops()))

	// Ports and tasks are only meaningful once the graph is wired.
	if !r.Live() {
		return
	}
	for _, e := range r.Elements() {
		c.collectElement(ch, e)
	}
}

func (c *Collector) collectElement(ch chan<- prometheus.Metric, e element.Element) {
	b := e.BaseElement()
	name, class := b.Name(), e.Class()
	for _, out := range []bool{false, true} {
		dir := "input"
		if out {
			dir = "output"
		}
		for i := 0; i < b.NPorts(out); i++ {
			p := b.Port(out, i)
			if !p.Active() {
				continue
			}
			ch <- prometheus.MustNewConstMetric(c.portPackets, prometheus.CounterValue,
				float64(p.NPackets()), name, class, dir, strconv.Itoa(i))
		}
	}
	if d, ok := e.(Dropper); ok {
		ch <- prometheus.MustNewConstMetric(c.drops, prometheus.CounterValue, float64(d.Drops()), name, class)
	}
	if s, ok := e.(element.Storage); ok {
		ch <- prometheus.MustNewConstMetric(c.queueSize, prometheus.GaugeValue, float64(s.Size()), name, class)
		ch <- prometheus.MustNewConstMetric(c.queueCap, prometheus.GaugeValue, float64(s.Capacity()), name, class)
	}
	for i, t := range b.Tasks() {
		id := strconv.Itoa(i)
		ch <- prometheus.MustNewConstMetric(c.taskRuns, prometheus.CounterValue, float64(t.Runs()), name, class, id)
		ch <- prometheus.MustNewConstMetric(c.taskTickets, prometheus.GaugeValue, float64(t.Tickets()), name, class, id)
	}
	for i, t := range b.Timers() {
		ch <- prometheus.MustNewConstMetric(c.timerFires, prometheus.CounterValue, float64(t.Fires()), name, class, strconv.Itoa(i))
	}
}
