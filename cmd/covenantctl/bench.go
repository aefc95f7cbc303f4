package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/covenant/internal/domain"
)

// benchDocument is one document sent to the server.
type benchDocument struct {
	Name     string
	Text     string
	Expected domain.Severity // empty when unlabeled
}

// benchMetrics tracks benchmark results.
type benchMetrics struct {
	TotalProcessed   int64
	TotalErrors      int64
	ProcessingTimeMs int64

	mu        sync.Mutex
	latencies []time.Duration
	// confusion[expected][actual]
	confusion map[domain.Severity]map[domain.Severity]int
	scores    map[domain.Severity]int
}

func (m *benchMetrics) record(doc benchDocument, got domain.Severity, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latencies = append(m.latencies, elapsed)
	m.scores[got]++
	if doc.Expected != "" {
		if m.confusion[doc.Expected] == nil {
			m.confusion[doc.Expected] = make(map[domain.Severity]int)
		}
		m.confusion[doc.Expected][got]++
	}
}

func newBenchCmd() *cobra.Command {
	var (
		dir      string
		manifest string
		baseURL  string
		tenantID string
		workers  int
		repeat   int
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load-test a running Covenant server",
		Long: "Send every *.txt document in a directory to POST /assess and report latency,\n" +
			"throughput and the overall risk distribution. A manifest CSV with columns\n" +
			"file,expected labels documents and adds a confusion matrix.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if err := checkHealth(baseURL); err != nil {
				return fmt.Errorf("covenant not reachable at %s: %w", baseURL, err)
			}
			fmt.Fprintln(out, "Covenant is healthy")

			docs, err := readBenchDocuments(dir, manifest)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no documents found in %s", dir)
			}
			fmt.Fprintf(out, "Loaded %d documents, %d passes, %d workers\n", len(docs), repeat, workers)

			start := time.Now()
			metrics := runBenchmark(out, docs, baseURL, tenantID, workers, repeat, verbose)
			printBenchResults(out, metrics, time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory of .txt documents")
	cmd.Flags().StringVar(&manifest, "manifest", "", "optional CSV with file,expected columns")
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Covenant base URL")
	cmd.Flags().StringVar(&tenantID, "tenant", "benchmark-test", "tenant ID for requests")
	cmd.Flags().IntVar(&workers, "workers", 10, "number of concurrent workers")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "number of passes over the documents")
	cmd.Flags().BoolVar(&verbose, "verbose-results", false, "print each document result")
	cmd.MarkFlagRequired("dir")
	return cmd
}

func checkHealth(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readBenchDocuments loads the *.txt files in dir, labeled by the manifest when given.
func readBenchDocuments(dir, manifest string) ([]benchDocument, error) {
	labels, err := readManifest(manifest)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var docs []benchDocument
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, benchDocument{
			Name:     entry.Name(),
			Text:     string(data),
			Expected: labels[entry.Name()],
		})
	}
	return docs, nil
}

func readManifest(path string) (map[string]domain.Severity, error) {
	labels := make(map[string]domain.Severity)
	if path == "" {
		return labels, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	fileCol, ok1 := colIndex["file"]
	expCol, ok2 := colIndex["expected"]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("manifest needs file and expected columns")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}
		if sev, ok := domain.ParseSeverity(record[expCol]); ok {
			labels[strings.TrimSpace(record[fileCol])] = sev
		}
	}
	return labels, nil
}

func runBenchmark(out io.Writer, docs []benchDocument, baseURL, tenantID string, numWorkers, repeat int, verbose bool) *benchMetrics {
	metrics := &benchMetrics{
		confusion: make(map[domain.Severity]map[domain.Severity]int),
		scores:    make(map[domain.Severity]int),
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	if repeat < 1 {
		repeat = 1
	}

	work := make(chan benchDocument, 100)
	var wg sync.WaitGroup
	var printMu sync.Mutex

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for doc := range work {
				start := time.Now()
				result, err := assessDocument(client, baseURL, tenantID, doc)
				elapsed := time.Since(start)

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed.Milliseconds())
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						printMu.Lock()
						fmt.Fprintf(out, "ERROR: %s -> %v\n", doc.Name, err)
						printMu.Unlock()
					}
					continue
				}

				metrics.record(doc, result.OverallRiskScore, elapsed)

				if verbose {
					status := " "
					if doc.Expected != "" {
						status = "✓"
						if doc.Expected != result.OverallRiskScore {
							status = "✗"
						}
					}
					printMu.Lock()
					fmt.Fprintf(out, "%s %-30s | Risk: %-6s | Risks: %2d | Cached: %-5v | %v\n",
						status, doc.Name, result.OverallRiskScore, len(result.Risks),
						result.Processing.Cached, elapsed.Round(time.Millisecond))
					printMu.Unlock()
				}
			}
		}()
	}

	for pass := 0; pass < repeat; pass++ {
		for _, doc := range docs {
			work <- doc
		}
	}
	close(work)

	wg.Wait()
	return metrics
}

func assessDocument(client *http.Client, baseURL, tenantID string, doc benchDocument) (*domain.AssessmentResponse, error) {
	body, err := json.Marshal(domain.DocumentRequest{Text: doc.Text})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/assess", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result domain.AssessmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printBenchResults(w io.Writer, m *benchMetrics, duration time.Duration) {
	fmt.Fprintln(w, "\n=== BENCHMARK RESULTS ===")

	fmt.Fprintf(w, "\nRequests\n")
	fmt.Fprintf(w, "   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Fprintf(w, "   Errors:           %d\n", m.TotalErrors)

	fmt.Fprintf(w, "\nOverall risk distribution\n")
	for _, sev := range []domain.Severity{domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh} {
		fmt.Fprintf(w, "   %-7s %d\n", sev, m.scores[sev])
	}

	if len(m.confusion) > 0 {
		fmt.Fprintf(w, "\nConfusion matrix (rows expected, columns actual)\n")
		fmt.Fprintf(w, "            %8s %8s %8s\n", "low", "medium", "high")
		correct, total := 0, 0
		for _, exp := range []domain.Severity{domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh} {
			row := m.confusion[exp]
			fmt.Fprintf(w, "   %-7s  %8d %8d %8d\n", exp, row[domain.SeverityLow], row[domain.SeverityMedium], row[domain.SeverityHigh])
			for act, n := range row {
				total += n
				if act == exp {
					correct += n
				}
			}
		}
		if total > 0 {
			fmt.Fprintf(w, "   Accuracy:   %.4f\n", float64(correct)/float64(total))
		}
	}

	fmt.Fprintf(w, "\nPerformance\n")
	fmt.Fprintf(w, "   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Fprintf(w, "   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Fprintf(w, "   p50 / p95 / p99:  %v / %v / %v\n",
			percentile(m.latencies, 0.50), percentile(m.latencies, 0.95), percentile(m.latencies, 0.99))
		fmt.Fprintf(w, "   Throughput:       %.2f docs/sec\n", rps)
	}
	fmt.Fprintln(w)
}

func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx].Round(time.Microsecond)
}
