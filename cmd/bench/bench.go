// bench.go runs a batch of BB84 key negotiations for each entry in the
// cartesian product of a collection of tuning parameters, e.g. channel error
// rate and qubits exchanged, and outputs a CSV of summary statistics for each
// combination, e.g. mean sifted key length and how often tampering was caught.
package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/photon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"gonum.org/v1/gonum/stat"
)

var (
	nBits     = flag.IntSlice("bits", []int{bb84.DefaultMaxQubits}, "The key lengths to request.")
	qber      = flag.Float64Slice("qber", []float64{0}, "The fraction of received qubits flipped by the channel.")
	eavesdrop = flag.Float64Slice("eavesdrop", []float64{0}, "The probability of an eavesdropper intercepting each qubit.")
	trials    = flag.IntSlice("trials", []int{100}, "The negotiations to run per parameterization.")

	oracle      = flag.String("oracle", photon.KindIdeal, "Quantum channel simulation: ideal or circuit.")
	seed        = flag.Int64("seed", 1234, "Seed for all randomness.")
	logLevel    = flag.String("log-level", "warning", "Logging verbosity.")
	simLogLevel = flag.String("sim-log-level", "fatal", "Logging verbosity of the simulator, which reports every mismatch as an error.")
	metricsAddr = flag.String("metrics-addr", "", "If set, serve prometheus metrics on this address, e.g. :9090.")
)

var (
	inputs  = []string{"bits", "qber", "eavesdrop", "trials"}
	columns = []string{"Bits", "QBER", "Eavesdrop", "Trials", "MeanSifted",
		"StdDevSifted", "MismatchRate", "MeanMismatches", "Errors"}
)

// An Experiment packages together the result of benchmarking a single
// parameterization for easy formatting.
type Experiment struct {
	// Fields corresponding to experiment parameters
	Bits      int
	QBER      float64
	Eavesdrop float64
	Trials    int

	// Fields corresponding to experiment results
	MeanSifted     float64
	StdDevSifted   float64
	MismatchRate   float64
	MeanMismatches float64
	Errors         int
}

// A runner benchmarks experiments against a common channel and metrics sink.
type runner struct {
	kind    string
	rand    *rand.Rand
	metrics *bb84.Metrics
	logger  *log.Entry
	simLog  *log.Entry
}

func main() {
	flag.Parse()
	lvl, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.WithError(err).Fatalln("Bad log level")
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	simLogger := log.New()
	simLogger.SetOutput(os.Stderr)
	if simLogger.Level, err = log.ParseLevel(*simLogLevel); err != nil {
		log.WithError(err).Fatalln("Bad simulator log level")
	}

	run := &runner{
		kind:   *oracle,
		rand:   rand.New(rand.NewSource(*seed)),
		logger: log.WithField("component", "bench"),
		simLog: simLogger.WithField("component", "bb84"),
	}
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if run.metrics, err = bb84.NewMetrics(reg); err != nil {
			log.WithError(err).Fatalln("Can't register metrics")
		}
		if _, err := serveMetrics(*metricsAddr, reg); err != nil {
			log.WithError(err).Fatalln("Can't serve metrics")
		}
	}

	fmt.Println(header())
	tmpl := template.Must(template.New("line").Parse(lineTmpl()))
	var args [][]interface{}
	for _, inp := range inputs {
		args = append(args, lookupInput(inp))
	}
	applyCartesian(func(args []interface{}) {
		exp := &Experiment{
			Bits:      args[inpIndex("bits")].(int),
			QBER:      args[inpIndex("qber")].(float64),
			Eavesdrop: args[inpIndex("eavesdrop")].(float64),
			Trials:    args[inpIndex("trials")].(int),
		}
		if err := run.bench(context.Background(), exp); err != nil {
			run.logger.WithError(err).Errorf("Benching %+v", *exp)
		}
		if err := tmpl.Execute(os.Stdout, exp); err != nil {
			log.WithError(err).Fatalln("BUG: could not fill in line template")
		}
	}, args)
}

// serveMetrics exports reg over HTTP at /metrics on addr until the process
// exits.
func serveMetrics(addr string, reg *prometheus.Registry) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
	go func() {
		log.WithField("address", addr).Infoln("Serving prometheus metrics")
		if err := server.Serve(l); err != nil {
			log.WithError(err).Errorln("Metrics server stopped")
		}
	}()
	return l, nil
}

func inpIndex(v string) int {
	for i, inp := range inputs {
		if inp == v {
			return i
		}
	}
	return -1
}

// channel builds the oracle for one trial. Channel errors are drawn as a fixed
// fraction of the exchanged qubits, shuffled into random positions, so each
// trial sees exactly the requested error rate. They apply to what the receiver
// measures, after any eavesdropper.
func (r *runner) channel(exp *Experiment, qubits int) (photon.Oracle, error) {
	base, err := photon.Config{Kind: r.kind}.Build(r.rand)
	if err != nil {
		return nil, err
	}
	if exp.QBER < 0 || exp.QBER > 1 {
		return nil, fmt.Errorf("qber must be within [0, 1], got %f", exp.QBER)
	}
	errs := bitmap.NewDense(nil, qubits)
	for i := 0; i < int(math.Round(float64(qubits)*exp.QBER)); i++ {
		errs.Set(i, true)
	}
	errs.Shuffle(r.rand)
	o := base
	if exp.Eavesdrop > 0 {
		o = &photon.Interceptor{
			Oracle:      o,
			Probability: exp.Eavesdrop,
			Rand:        rand.New(rand.NewSource(r.rand.Int63())),
		}
	}
	return &photon.Noisy{Oracle: o, Errors: errs}, nil
}

func (r *runner) bench(ctx context.Context, exp *Experiment) error {
	if exp.Trials <= 0 {
		return fmt.Errorf("trials must be positive, got %d", exp.Trials)
	}
	qubits := exp.Bits
	if qubits > bb84.DefaultMaxQubits {
		qubits = bb84.DefaultMaxQubits
	}
	var sifted, mismatches []float64
	caught := 0
	for i := 0; i < exp.Trials; i++ {
		o, err := r.channel(exp, qubits)
		if err != nil {
			return err
		}
		sim, err := bb84.NewSimulator(bb84.Opts{
			Oracle:       o,
			Rand:         rand.New(rand.NewSource(r.rand.Int63())),
			ReceiverRand: rand.New(rand.NewSource(r.rand.Int63())),
			Logger:       r.simLog,
			Metrics:      r.metrics,
		})
		if err != nil {
			return err
		}
		_, stats, err := sim.GenerateKey(ctx, exp.Bits)
		var mm *bb84.KeyMismatchError
		switch {
		case err == nil:
		case errors.As(err, &mm):
			caught++
		default:
			exp.Errors++
			continue
		}
		sifted = append(sifted, float64(stats.Sifted))
		mismatches = append(mismatches, float64(stats.Mismatches))
	}
	if len(sifted) == 0 {
		return fmt.Errorf("all %d trials failed", exp.Trials)
	}
	exp.MeanSifted, exp.StdDevSifted = stat.MeanStdDev(sifted, nil)
	if len(sifted) == 1 {
		exp.StdDevSifted = 0
	}
	exp.MeanMismatches = stat.Mean(mismatches, nil)
	exp.MismatchRate = float64(caught) / float64(len(sifted))
	return nil
}

func header() string {
	return strings.Join(columns, ", ")
}

func lineTmpl() string {
	var els []string
	for _, c := range columns {
		els = append(els, "{{."+c+"}}")
	}
	return strings.Join(els, ", ") + "\n"
}

func lookupInput(name string) []interface{} {
	var r []interface{}
	if v, err := flag.CommandLine.GetIntSlice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else if v, err := flag.CommandLine.GetFloat64Slice(name); err == nil {
		for _, val := range v {
			r = append(r, val)
		}
	} else {
		log.Fatalf("Unknown type for input %s", name)
	}
	return r
}

func applyCartesian(f func([]interface{}), args [][]interface{}) {
	for i := range args {
		if len(args[i]) == 1 {
			continue
		}
		l := make([][]interface{}, len(args))
		r := make([][]interface{}, len(args))
		copy(l, args)
		copy(r, args)
		l[i] = args[i][:1]
		r[i] = args[i][1:]
		applyCartesian(f, l)
		applyCartesian(f, r)
		return
	}
	x := make([]interface{}, 0, len(args))
	for _, a := range args {
		x = append(x, a[0])
	}
	f(x)
}
