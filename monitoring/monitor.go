// Package monitoring turns a running simulation into a web server, so that
// the kernel state, the syscall traffic, and the engine can be inspected and
// controlled from outside.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unsafe"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/esyslab/tsukuba/kernel"
	"github.com/esyslab/tsukuba/monitoring/web"
	"github.com/esyslab/tsukuba/sim"
	"github.com/esyslab/tsukuba/tracing"
)

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	engine     sim.Engine
	kernel     *kernel.Kernel
	components []sim.Component
	buffers    []sim.Buffer
	portNumber int
	actualPort int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	liveLock  sync.Mutex
	liveConns []*websocket.Conn
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// refused and replaced with a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// Port returns the port the monitoring server listens on. It is zero before
// StartServer is called.
func (m *Monitor) Port() int {
	return m.actualPort
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterKernel registers the kernel whose processes, drivers, and upcall
// queues are exposed. The kernel is also monitored as a component.
func (m *Monitor) RegisterKernel(k *kernel.Kernel) {
	m.kernel = k
	m.RegisterComponent(k)
}

// RegisterComponent registers a component to be monitored.
func (m *Monitor) RegisterComponent(c sim.Component) {
	m.components = append(m.components, c)

	m.registerBuffers(c)
}

// registerBuffers picks up the sim.Buffer fields of a component so their
// levels show up in the queue endpoints. Unexported fields are reached
// through untyped pointers.
func (m *Monitor) registerBuffers(c any) {
	bufferType := reflect.TypeOf((*sim.Buffer)(nil)).Elem()

	v := reflect.ValueOf(c).Elem()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Type() != bufferType {
			continue
		}

		buf := reflect.NewAt(
			field.Type(),
			unsafe.Pointer(field.UnsafeAddr()),
		).Elem().Interface().(sim.Buffer)

		m.buffers = append(m.buffers, buf)
	}
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	remaining := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			remaining = append(remaining, b)
		}
	}

	m.progressBars = remaining
}

// LiveTracer returns a tracer that streams every task to the websocket
// clients connected at /api/live. Attach it to a task domain with
// tracing.CollectTrace.
func (m *Monitor) LiveTracer() tracing.Tracer {
	return liveTracer{monitor: m}
}

// StartServer starts serving the monitoring API and dashboard. It listens on
// the configured port, or a random one, and reports the address on stderr.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()
	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/processes", m.listProcesses)
	r.HandleFunc("/api/drivers", m.listDrivers)
	r.HandleFunc("/api/upcallqueues", m.listUpcallQueues)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/live", m.live)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))
	http.Handle("/", r)

	addr := ":0"
	if m.portNumber > 1000 {
		addr = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", addr)
	dieOnErr(err)

	m.actualPort = listener.Addr().(*net.TCPAddr).Port

	fmt.Fprintf(
		os.Stderr,
		"Monitoring simulation with http://localhost:%d\n",
		m.actualPort)

	go func() {
		dieOnErr(http.Serve(listener, nil))
	}()
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%.10f}", m.engine.CurrentTime())
}

func (m *Monitor) run(_ http.ResponseWriter, _ *http.Request) {
	go func() {
		if err := m.engine.Run(); err != nil {
			panic(err)
		}
	}()
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	component := m.findComponentOr404(w, mux.Vars(r)["name"])
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	dieOnErr(serializer.Serialize(w))
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}
	dieOnErr(json.Unmarshal([]byte(mux.Vars(r)["json"]), &req))

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	if _, err := m.walkFields(component, req.FieldName); err != nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Field not found: %s", req.FieldName)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	dieOnErr(serializer.SetEntryPoint(strings.Split(req.FieldName, ".")))
	dieOnErr(serializer.Serialize(w))
}

type processRsp struct {
	PID            uint32 `json:"pid"`
	Name           string `json:"name"`
	State          string `json:"state"`
	QueueLevel     int    `json:"queue_level"`
	QueueCap       int    `json:"queue_cap"`
	DroppedUpcalls uint64 `json:"dropped_upcalls"`
}

func (m *Monitor) listProcesses(w http.ResponseWriter, _ *http.Request) {
	if m.kernel == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	rsp := make([]processRsp, 0, len(m.kernel.Processes()))
	for _, p := range m.kernel.Processes() {
		rsp = append(rsp, processRsp{
			PID:            uint32(p.PID()),
			Name:           p.Name(),
			State:          p.State().String(),
			QueueLevel:     p.UpcallQueue().Size(),
			QueueCap:       p.UpcallQueue().Capacity(),
			DroppedUpcalls: p.DroppedUpcalls(),
		})
	}

	writeJSON(w, rsp)
}

type driverRsp struct {
	Num  string `json:"num"`
	Name string `json:"name,omitempty"`
}

func (m *Monitor) listDrivers(w http.ResponseWriter, _ *http.Request) {
	if m.kernel == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	rsp := make([]driverRsp, 0, len(m.kernel.DriverNums()))
	for _, num := range m.kernel.DriverNums() {
		d, _ := m.kernel.Driver(num)

		entry := driverRsp{Num: fmt.Sprintf("%#x", uint32(num))}
		if named, ok := d.(sim.Named); ok {
			entry.Name = named.Name()
		}

		rsp = append(rsp, entry)
	}

	writeJSON(w, rsp)
}

type queueRsp struct {
	Buffer string `json:"buffer"`
	Level  int    `json:"level"`
	Cap    int    `json:"cap"`
}

func (m *Monitor) listUpcallQueues(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := queueQueryParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	rsp := []queueRsp{}
	for _, b := range m.sortAndSelectBuffers(sortMethod, limit, offset) {
		rsp = append(rsp, queueRsp{
			Buffer: b.Name(),
			Level:  b.Size(),
			Cap:    b.Capacity(),
		})
	}

	writeJSON(w, rsp)
}

func queueQueryParams(
	r *http.Request,
) (sortMethod string, limit, offset int, err error) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}
	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, errors.New(
			"invalid sort method: " + sortMethod +
				", allowed values are `level` and `percent`")
	}

	limit, err = intQueryParam(r, "limit")
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offset, err = intQueryParam(r, "offset")
	if err != nil {
		return sortMethod, limit, 0, err
	}

	return sortMethod, limit, offset, nil
}

func intQueryParam(r *http.Request, name string) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, nil
	}

	return strconv.Atoi(value)
}

func bufferPercent(b sim.Buffer) float64 {
	return float64(b.Size()) / float64(b.Capacity())
}

// collectBuffers merges the buffers picked up from registered components
// with the upcall queues of the kernel's processes.
func (m *Monitor) collectBuffers() []sim.Buffer {
	buffers := make([]sim.Buffer, 0, len(m.buffers))
	buffers = append(buffers, m.buffers...)

	if m.kernel != nil {
		for _, p := range m.kernel.Processes() {
			buffers = append(buffers, p.UpcallQueue())
		}
	}

	return buffers
}

func (m *Monitor) sortAndSelectBuffers(
	sortMethod string,
	limit, offset int,
) []sim.Buffer {
	buffers := m.collectBuffers()

	byLevel := func(i, j int) bool {
		if buffers[i].Size() != buffers[j].Size() {
			return buffers[i].Size() > buffers[j].Size()
		}

		return bufferPercent(buffers[i]) > bufferPercent(buffers[j])
	}
	byPercent := func(i, j int) bool {
		pi, pj := bufferPercent(buffers[i]), bufferPercent(buffers[j])
		if pi != pj {
			return pi > pj
		}

		return buffers[i].Size() > buffers[j].Size()
	}

	if sortMethod == "level" {
		sort.Slice(buffers, byLevel)
	} else {
		sort.Slice(buffers, byPercent)
	}

	if offset > len(buffers) {
		offset = len(buffers)
	}

	end := len(buffers)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return buffers[offset:end]
}

type fieldFormatError struct{}

func (e fieldFormatError) Error() string {
	return "fieldFormatError"
}

// walkFields resolves a dot-separated field path inside a component,
// crossing pointers and interfaces silently and indexing slices with
// numeric path elements.
func (m *Monitor) walkFields(
	comp interface{},
	fields string,
) (reflect.Value, error) {
	elem := reflect.ValueOf(comp)

	fieldNames := strings.Split(fields, ".")
	for len(fieldNames) > 0 {
		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface:
			elem = elem.Elem()
		case reflect.Struct:
			elem = elem.FieldByName(fieldNames[0])
			if !elem.IsValid() {
				return elem, fieldFormatError{}
			}

			fieldNames = fieldNames[1:]
		case reflect.Slice:
			index, err := strconv.Atoi(fieldNames[0])
			if err != nil || index >= elem.Len() {
				return elem, fieldFormatError{}
			}

			elem = elem.Index(index)
			fieldNames = fieldNames[1:]
		default:
			panic(fmt.Sprintf("kind %d not supported", elem.Kind()))
		}
	}

	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	return elem, nil
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) sim.Component {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bytes, err := json.Marshal(m.progressBars)
	m.progressBarsLock.Unlock()
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memInfo.RSS,
	})
}

// collectProfile samples the CPU for one second and returns the parsed
// profile as JSON.
func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	dieOnErr(pprof.StartCPUProfile(buf))
	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

var liveUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func (m *Monitor) live(w http.ResponseWriter, r *http.Request) {
	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.liveLock.Lock()
	m.liveConns = append(m.liveConns, conn)
	m.liveLock.Unlock()
}

type liveTaskUpdate struct {
	Kind string       `json:"kind"`
	Task tracing.Task `json:"task"`
}

// broadcastTask sends a task update to every live client, dropping the
// clients whose connection has gone away.
func (m *Monitor) broadcastTask(kind string, task tracing.Task) {
	m.liveLock.Lock()
	defer m.liveLock.Unlock()

	remaining := m.liveConns[:0]
	for _, conn := range m.liveConns {
		err := conn.WriteJSON(liveTaskUpdate{Kind: kind, Task: task})
		if err != nil {
			_ = conn.Close()
			continue
		}

		remaining = append(remaining, conn)
	}
	m.liveConns = remaining
}

// A liveTracer forwards every task of the collected domain to the websocket
// clients of the monitor.
type liveTracer struct {
	monitor *Monitor
}

func (t liveTracer) StartTask(task tracing.Task) {
	if t.monitor.engine != nil {
		task.StartTime = t.monitor.engine.CurrentTime()
	}

	t.monitor.broadcastTask("start", task)
}

func (t liveTracer) StepTask(task tracing.Task) {
	t.monitor.broadcastTask("step", task)
}

func (t liveTracer) EndTask(task tracing.Task) {
	if t.monitor.engine != nil {
		task.EndTime = t.monitor.engine.CurrentTime()
	}

	t.monitor.broadcastTask("end", task)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}
