package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
)

var (
	complaints = []string{
		"Sensitivity to cold drinks",
		"Pain when chewing on the left side",
		"Routine six month check",
		"Chipped front tooth",
		"Bleeding gums while brushing",
	}
	procedures = []string{
		"Scaling and polishing",
		"Composite filling placed",
		"Crown cemented",
		"Fluoride varnish applied",
		"Extraction under local anaesthetic",
	}
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	IntakeRatio   float64
	CompleteRatio float64
	ReadRatio     float64
	AdminEmail    string
	AdminPassword string
}

// DataPool tracks the ids the workers can act on.
type DataPool struct {
	mu        sync.RWMutex
	patients  []string
	pending   []string
	completed int64
}

func (dp *DataPool) AddPatient(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.patients = append(dp.patients, id)
}

func (dp *DataPool) AddPending(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.pending = append(dp.pending, id)
}

func (dp *DataPool) RandomPatient(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.patients) == 0 {
		return "", false
	}
	return dp.patients[rng.Intn(len(dp.patients))], true
}

// TakePending removes and returns a random pending incident id.
func (dp *DataPool) TakePending(rng *rand.Rand) (string, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.pending) == 0 {
		return "", false
	}
	i := rng.Intn(len(dp.pending))
	id := dp.pending[i]
	dp.pending[i] = dp.pending[len(dp.pending)-1]
	dp.pending = dp.pending[:len(dp.pending)-1]
	return id, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

// Record counts one call. rejected means the server answered with a 4xx.
func (om *OperationMetrics) Record(latency time.Duration, success bool, rejected bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if rejected {
		atomic.AddInt64(&om.Rejected, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	i := n * p / 100
	if i >= n {
		i = n - 1
	}
	return i
}

type Metrics struct {
	NewPatient    OperationMetrics
	NewIncident   OperationMetrics
	Complete      OperationMetrics
	Dashboard     OperationMetrics
	SearchPatient OperationMetrics
	Calendar      OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d intake=%.2f complete=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.IntakeRatio, cfg.CompleteRatio, cfg.ReadRatio)

	sim := &Simulator{
		config: cfg,
		pool:   &DataPool{},
		client: &http.Client{
			Timeout: 10 * time.Second,
			// a redirect means the session was lost; surface it as a failure
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sim.login(ctx); err != nil {
		log.Fatalf("login: %v", err)
	}
	if err := sim.loadDataPool(ctx); err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d patients, %d pending incidents", len(sim.pool.patients), len(sim.pool.pending))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	_ = godotenv.Load()

	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 4),
		IntakeRatio:   getFloat("SIM_INTAKE_RATIO", 0.3),
		CompleteRatio: getFloat("SIM_COMPLETE_RATIO", 0.2),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.5),
		AdminEmail:    getEnv("SIM_ADMIN_EMAIL", "admin@dentalclinic.com"),
		AdminPassword: getEnv("SIM_ADMIN_PASSWORD", "admin123"),
	}

	total := cfg.IntakeRatio + cfg.CompleteRatio + cfg.ReadRatio
	if total > 0 {
		cfg.IntakeRatio /= total
		cfg.CompleteRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if _, err := url.Parse(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("SIM_API_BASE_URL: %w", err)
	}
	return nil
}

// login opens the server's single session as the admin. Every worker acts
// through it.
func (s *Simulator) login(ctx context.Context) error {
	status, body, err := s.call(ctx, http.MethodPost, "/login", map[string]string{
		"email":    s.config.AdminEmail,
		"password": s.config.AdminPassword,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *Simulator) loadDataPool(ctx context.Context) error {
	status, body, err := s.call(ctx, http.MethodGet, "/patients", nil)
	if err != nil {
		return fmt.Errorf("load patients: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("load patients: status %d", status)
	}
	var patients []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &patients); err != nil {
		return fmt.Errorf("decode patients: %w", err)
	}
	for _, p := range patients {
		s.pool.AddPatient(p.ID)
	}

	status, body, err = s.call(ctx, http.MethodGet, "/incidents?status=pending", nil)
	if err != nil {
		return fmt.Errorf("load incidents: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("load incidents: status %d", status)
	}
	var incidents []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &incidents); err != nil {
		return fmt.Errorf("decode incidents: %w", err)
	}
	for _, inc := range incidents {
		s.pool.AddPending(inc.ID)
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	seed := time.Now().UnixNano() + int64(workerID)
	rng := rand.New(rand.NewSource(seed))
	faker := gofakeit.New(uint64(seed))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.IntakeRatio:
				if rng.Intn(2) == 0 {
					s.doNewPatient(ctx, faker)
				} else {
					s.doNewIncident(ctx, rng, faker)
				}
			case r < s.config.IntakeRatio+s.config.CompleteRatio:
				s.doComplete(ctx, rng, faker)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doDashboard(ctx)
				case 1:
					s.doSearchPatient(ctx, faker)
				case 2:
					s.doCalendar(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doNewPatient(ctx context.Context, f *gofakeit.Faker) {
	first, last := f.FirstName(), f.LastName()
	req := map[string]string{
		"fullName":      first + " " + last,
		"dateOfBirth":   f.DateRange(time.Now().AddDate(-80, 0, 0), time.Now().AddDate(-5, 0, 0)).Format("2006-01-02"),
		"contactNumber": "+1 " + f.Numerify("### ### ####"),
		"email":         strings.ToLower(first+"."+last) + "@" + f.DomainName(),
	}

	start := time.Now()
	status, body, err := s.call(ctx, http.MethodPost, "/patients", req)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success {
		var created struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(body, &created) == nil && created.ID != "" {
			s.pool.AddPatient(created.ID)
		}
	}
	s.metrics.NewPatient.Record(latency, success, isRejected(status))
}

func (s *Simulator) doNewIncident(ctx context.Context, rng *rand.Rand, f *gofakeit.Faker) {
	patientID, ok := s.pool.RandomPatient(rng)
	if !ok {
		return
	}
	req := map[string]any{
		"patientId":       patientID,
		"title":           f.RandomString([]string{"Check-up", "Toothache", "Cleaning", "Filling", "Crown fitting"}),
		"description":     f.RandomString(complaints),
		"appointmentDate": time.Now().Add(time.Duration(rng.Intn(60*24)) * time.Hour).UTC(),
	}

	start := time.Now()
	status, body, err := s.call(ctx, http.MethodPost, "/incidents", req)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success {
		var created struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(body, &created) == nil && created.ID != "" {
			s.pool.AddPending(created.ID)
		}
	}
	s.metrics.NewIncident.Record(latency, success, isRejected(status))
}

func (s *Simulator) doComplete(ctx context.Context, rng *rand.Rand, f *gofakeit.Faker) {
	id, ok := s.pool.TakePending(rng)
	if !ok {
		return
	}
	req := map[string]any{
		"status":           "completed",
		"cost":             float64(50 + rng.Intn(900)),
		"treatmentDetails": f.RandomString(procedures),
	}

	start := time.Now()
	status, _, err := s.call(ctx, http.MethodPut, "/incidents/"+id, req)
	latency := time.Since(start)

	success := err == nil && status == http.StatusOK
	if success {
		atomic.AddInt64(&s.pool.completed, 1)
	}
	s.metrics.Complete.Record(latency, success, isRejected(status))
}

func (s *Simulator) doDashboard(ctx context.Context) {
	s.timedGet(ctx, "/dashboard", &s.metrics.Dashboard)
}

func (s *Simulator) doSearchPatient(ctx context.Context, f *gofakeit.Faker) {
	s.timedGet(ctx, "/patients?search="+url.QueryEscape(f.Letter()), &s.metrics.SearchPatient)
}

func (s *Simulator) doCalendar(ctx context.Context, rng *rand.Rand) {
	month := time.Now().AddDate(0, rng.Intn(3), 0).Format("2006-01")
	s.timedGet(ctx, "/calendar?month="+month, &s.metrics.Calendar)
}

func (s *Simulator) timedGet(ctx context.Context, path string, om *OperationMetrics) {
	start := time.Now()
	status, _, err := s.call(ctx, http.MethodGet, path, nil)
	om.Record(time.Since(start), err == nil && status == http.StatusOK, isRejected(status))
}

func (s *Simulator) call(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func isRejected(status int) bool {
	return status >= 300 && status < 500
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Treatments completed: %d\n", atomic.LoadInt64(&s.pool.completed))
	fmt.Println()

	printOperationReport("New patient", &s.metrics.NewPatient)
	printOperationReport("New incident", &s.metrics.NewIncident)
	printOperationReport("Complete treatment", &s.metrics.Complete)
	printOperationReport("Dashboard", &s.metrics.Dashboard)
	printOperationReport("Search patients", &s.metrics.SearchPatient)
	printOperationReport("Calendar", &s.metrics.Calendar)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	rejected := atomic.LoadInt64(&om.Rejected)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
