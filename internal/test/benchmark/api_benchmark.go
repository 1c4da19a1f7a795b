package benchmark

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner 以固定并发压测养护服务的接口，按HTTP状态码和响应信封中的业务码统计
type Runner struct {
	BaseURL     string
	Token       string
	Concurrency int
	Requests    int
	Client      *http.Client
}

// Result 一轮压测的统计
type Result struct {
	Method      string
	Path        string
	Requests    int
	Elapsed     time.Duration
	StatusCodes map[int]int
	BizCodes    map[int]int
	Latencies   []time.Duration // 升序
	Errors      []string
}

func NewRunner(baseURL string, concurrency, requests int, token string) *Runner {
	return &Runner{
		BaseURL:     baseURL,
		Token:       token,
		Concurrency: concurrency,
		Requests:    requests,
		Client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) Get(path string) *Result {
	return r.run(http.MethodGet, path, nil)
}

func (r *Runner) Post(path string, payload interface{}) *Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Result{Method: http.MethodPost, Path: path, Errors: []string{err.Error()}}
	}
	return r.run(http.MethodPost, path, body)
}

func (r *Runner) run(method, path string, body []byte) *Result {
	res := &Result{
		Method:      method,
		Path:        path,
		Requests:    r.Requests,
		StatusCodes: make(map[int]int),
		BizCodes:    make(map[int]int),
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.Concurrency)

	start := time.Now()
	for i := 0; i < r.Requests; i++ {
		g.Go(func() error {
			began := time.Now()
			status, biz, err := r.send(method, path, body)
			took := time.Since(began)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Errors = append(res.Errors, err.Error())
				return nil
			}
			res.StatusCodes[status]++
			res.BizCodes[biz]++
			res.Latencies = append(res.Latencies, took)
			return nil
		})
	}
	_ = g.Wait()
	res.Elapsed = time.Since(start)

	sort.Slice(res.Latencies, func(i, j int) bool { return res.Latencies[i] < res.Latencies[j] })
	return res
}

// send 发送一次请求，返回HTTP状态码和信封中的 code
func (r *Runner) send(method, path string, body []byte) (int, int, error) {
	req, err := http.NewRequest(method, r.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	var envelope struct {
		Code int `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return resp.StatusCode, 0, fmt.Errorf("%d: 响应不是JSON信封: %w", resp.StatusCode, err)
	}
	return resp.StatusCode, envelope.Code, nil
}

// Percentile p 取 0~1
func (r *Result) Percentile(p float64) time.Duration {
	if len(r.Latencies) == 0 {
		return 0
	}
	idx := int(p * float64(len(r.Latencies)-1))
	return r.Latencies[idx]
}

// Rate 状态码在 codes 中的请求占比
func (r *Result) Rate(codes ...int) float64 {
	if r.Requests == 0 {
		return 0
	}
	n := 0
	for _, c := range codes {
		n += r.StatusCodes[c]
	}
	return float64(n) / float64(r.Requests)
}

// ServerErrors 5xx 响应数
func (r *Result) ServerErrors() int {
	n := 0
	for status, count := range r.StatusCodes {
		if status >= 500 {
			n += count
		}
	}
	return n
}

// Failures 非2xx响应与传输错误之和
func (r *Result) Failures() int {
	n := len(r.Errors)
	for status, count := range r.StatusCodes {
		if status < 200 || status >= 300 {
			n += count
		}
	}
	return n
}

func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d 请求, 耗时 %s, %.1f req/s, p50=%s p95=%s max=%s",
		r.Method, r.Path, r.Requests, r.Elapsed.Round(time.Millisecond),
		float64(r.Requests)/r.Elapsed.Seconds(),
		r.Percentile(0.5), r.Percentile(0.95), r.Percentile(1))
	fmt.Fprintf(&b, "\n  状态码=%v 业务码=%v", r.StatusCodes, r.BizCodes)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\n  错误 %d 个, 首个: %s", len(r.Errors), r.Errors[0])
	}
	return b.String()
}
