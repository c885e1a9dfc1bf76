// Scan agent: a kiosk-side companion for admins. It runs one scan session
// over a frame source (a watched directory fed by a camera capture pipeline),
// decodes the student's QR token, looks up their status through the API, and
// only toggles after an explicit operator confirmation. Scanning alone never
// mutates the ledger.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hostelhub/internal/qr"
	"hostelhub/internal/scanner"
)

func main() {
	apiURL := envOr("API_URL", "http://localhost:8080")
	token := os.Getenv("API_TOKEN")
	framesDir := envOr("FRAMES_DIR", "./frames")
	interval := 200 * time.Millisecond

	if token == "" {
		log.Fatal("API_TOKEN (admin bearer token) is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("stopping scan session...")
		cancel()
	}()

	src := newDirSource(framesDir, interval)
	sess := scanner.NewSession(src, qr.Decode)

	events, err := sess.Start(ctx)
	if err != nil {
		log.Fatalf("could not start scan session: %v", err)
	}
	defer sess.Stop()
	log.Printf("scanning frames in %s ...", framesDir)

	evt, ok := <-events
	if !ok {
		log.Println("session stopped before any code was matched")
		return
	}
	if evt.Err != nil {
		log.Fatalf("scan session failed: %v", evt.Err)
	}

	client := &api{base: apiURL, token: token, http: &http.Client{Timeout: 10 * time.Second}}

	res, err := client.scan(ctx, evt.Token)
	if err != nil {
		log.Fatalf("scan lookup failed: %v", err)
	}
	fmt.Printf("%s (%s) — %s on %s (already marked: %v)\n",
		res.Student.Name, res.Student.RollNumber, res.Status, res.Date.Format("2006-01-02"), res.AlreadyMarked)

	// Toggling is a deliberate second step so one camera misread can never
	// silently flip attendance.
	fmt.Print("Toggle attendance for this student? [y/N] ")
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if strings.TrimSpace(strings.ToLower(answer)) != "y" {
		fmt.Println("left unchanged")
		return
	}

	status, err := client.toggle(ctx, res.Student.ID)
	if err != nil {
		log.Fatalf("toggle failed: %v", err)
	}
	fmt.Printf("now marked %s\n", status)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// api is a thin client for the attendance endpoints.
type api struct {
	base  string
	token string
	http  *http.Client
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type scanData struct {
	Student struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		RollNumber string `json:"rollNumber"`
	} `json:"student"`
	Date          time.Time `json:"date"`
	Status        string    `json:"status"`
	AlreadyMarked bool      `json:"alreadyMarked"`
}

func (a *api) post(ctx context.Context, path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("bad response (%d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		return fmt.Errorf("%s (%d)", env.Message, resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (a *api) scan(ctx context.Context, qrToken string) (scanData, error) {
	var data scanData
	err := a.post(ctx, "/v1/attendance/scan", map[string]string{"qrToken": qrToken}, &data)
	return data, err
}

func (a *api) toggle(ctx context.Context, studentID string) (string, error) {
	var data struct {
		Status string `json:"status"`
	}
	err := a.post(ctx, "/v1/attendance/toggle", map[string]string{"studentId": studentID}, &data)
	return data.Status, err
}
