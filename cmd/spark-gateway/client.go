// ABOUTME: Client-side commands that talk to a running gateway over its HTTP API
// ABOUTME: Includes a watch simulator that speaks the same transcript encoding as the device

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/2389/spark-gateway/internal/auth"
	"github.com/2389/spark-gateway/internal/config"
	"github.com/2389/spark-gateway/internal/settings"
	"github.com/2389/spark-gateway/internal/transcript"
	"github.com/2389/spark-gateway/internal/watch"
)

// cliTokenTTL is the lifetime of tokens minted for a single CLI invocation.
const cliTokenTTL = 5 * time.Minute

func clientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "url", Usage: "gateway base URL (default: from config)", Sources: cli.EnvVars("SPARK_GATEWAY_URL")},
		&cli.StringFlag{Name: "token", Usage: "bearer token for /api routes (default: minted from config)", Sources: cli.EnvVars("SPARK_TOKEN")},
	}
}

// apiClient calls the gateway HTTP API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// newAPIClient resolves the base URL and token from flags, falling back to
// the config file. A missing config file is not an error.
func newAPIClient(cmd *cli.Command) (*apiClient, error) {
	c := &apiClient{
		baseURL: strings.TrimSuffix(cmd.String("url"), "/"),
		token:   cmd.String("token"),
		http:    &http.Client{},
	}
	if c.baseURL != "" && c.token != "" {
		return c, nil
	}

	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if c.baseURL == "" {
			c.baseURL = "http://" + config.DefaultHTTPAddr
		}
		return c, nil
	}

	if c.baseURL == "" {
		if cfg.Server.HTTPAddr == "" {
			return nil, errors.New("gateway listens on tailscale only; pass --url")
		}
		c.baseURL = "http://" + cfg.Server.HTTPAddr
	}
	if c.token == "" && cfg.Auth.JWTSecret != "" {
		c.token, err = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate("cli", cliTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("generating token: %w", err)
		}
	}
	return c, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// call performs a JSON request and decodes a 2xx body into out.
func (c *apiClient) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func responseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
	}
	return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
}

// chat sends one encoded transcript and reads the reply stream until RESPONSE_END.
func (c *apiClient) chat(ctx context.Context, msgs []transcript.Message) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/watch/chat", map[string]string{
		watch.KeyRequestChat: transcript.Encode(msgs),
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}
	return readReply(resp.Body)
}

// readReply extracts RESPONSE_TEXT from an SSE reply stream.
func readReply(r io.Reader) (string, error) {
	var text string
	var gotText bool

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return "", fmt.Errorf("decoding event: %w", err)
		}
		if v, ok := msg[watch.KeyResponseText].(string); ok {
			text, gotText = v, true
		}
		if _, ok := msg[watch.KeyResponseEnd]; ok {
			if !gotText {
				return "", errors.New("reply ended without text")
			}
			return text, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading reply: %w", err)
	}
	return "", errors.New("reply stream closed before RESPONSE_END")
}

func runHealth(ctx context.Context, cmd *cli.Command) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	var status struct {
		Ready        int    `json:"READY_STATUS"`
		ProviderName string `json:"PROVIDER_NAME"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/watch/status", nil, &status); err != nil {
		return err
	}

	if status.Ready == 1 {
		color.New(color.FgGreen).Print("ready")
	} else {
		color.New(color.FgYellow).Print("not ready")
	}
	fmt.Printf(" (%s)\n", status.ProviderName)
	return nil
}

func runChat(ctx context.Context, cmd *cli.Command) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	if cmd.Args().Len() > 0 {
		msg := transcript.Message{Role: transcript.RoleUser, Content: strings.Join(cmd.Args().Slice(), " ")}
		reply, err := c.chat(ctx, []transcript.Message{msg})
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	return chatLoop(ctx, c, os.Stdin, os.Stdout)
}

// chatLoop keeps a rolling history the way the watch does, sending the last
// transcript.MaxTurns messages with every request.
func chatLoop(ctx context.Context, c *apiClient, in io.Reader, out io.Writer) error {
	cyan := color.New(color.FgCyan)
	reader := bufio.NewReader(in)
	var history []transcript.Message

	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(out)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		history = append(history, transcript.Message{Role: transcript.RoleUser, Content: line})
		history = transcript.Window(history, transcript.MaxTurns)

		reply, err := c.chat(ctx, history)
		if err != nil {
			return err
		}
		cyan.Fprintln(out, reply)

		history = append(history, transcript.Message{Role: transcript.RoleAssistant, Content: reply})
	}
}

func runSettingsShow(ctx context.Context, cmd *cli.Command) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	var persisted map[string]string
	if err := c.call(ctx, http.MethodGet, "/api/settings", nil, &persisted); err != nil {
		return err
	}
	if !cmd.Bool("reveal") {
		persisted = settings.Redact(persisted)
	}

	if len(persisted) == 0 {
		fmt.Println("no settings stored")
		return nil
	}

	keys := make([]string, 0, len(persisted))
	for k := range persisted {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	gray := color.New(color.FgHiBlack)
	for _, k := range keys {
		gray.Printf("%-20s", k)
		fmt.Println(persisted[k])
	}
	return nil
}

// parseAssignments turns key=value arguments into a settings update.
func parseAssignments(args []string) (map[string]string, error) {
	known := make(map[string]bool, len(settings.Keys))
	for _, k := range settings.Keys {
		known[k] = true
	}

	update := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if !known[key] {
			return nil, fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(settings.Keys, ", "))
		}
		update[key] = value
	}
	return update, nil
}

func runSettingsApply(ctx context.Context, cmd *cli.Command) error {
	update, err := parseAssignments(cmd.Args().Slice())
	if err != nil {
		return err
	}

	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("merge") {
		var persisted map[string]string
		if err := c.call(ctx, http.MethodGet, "/api/settings", nil, &persisted); err != nil {
			return err
		}
		for k, v := range update {
			persisted[k] = v
		}
		update = persisted
	}

	var status struct {
		Ready        int    `json:"READY_STATUS"`
		ProviderName string `json:"PROVIDER_NAME"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/settings", update, &status); err != nil {
		return err
	}

	color.New(color.FgGreen).Print("  ✓ ")
	fmt.Printf("settings applied, ready=%d provider=%s\n", status.Ready, status.ProviderName)
	return nil
}

func runExchanges(ctx context.Context, cmd *cli.Command) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	var exchanges []struct {
		ID           string    `json:"id"`
		Provider     string    `json:"provider"`
		Model        string    `json:"model"`
		MessageCount int       `json:"message_count"`
		Outcome      string    `json:"outcome"`
		StatusCode   int       `json:"status_code"`
		DurationMS   int64     `json:"duration_ms"`
		CreatedAt    time.Time `json:"created_at"`
	}
	path := "/api/exchanges?limit=" + strconv.Itoa(int(cmd.Int("limit")))
	if err := c.call(ctx, http.MethodGet, path, nil, &exchanges); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPROVIDER\tMODEL\tMSGS\tOUTCOME\tSTATUS\tDURATION")
	for _, ex := range exchanges {
		status := "-"
		if ex.StatusCode != 0 {
			status = strconv.Itoa(ex.StatusCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%dms\n",
			ex.CreatedAt.Local().Format(time.DateTime), ex.Provider, ex.Model,
			ex.MessageCount, ex.Outcome, status, ex.DurationMS)
	}
	return w.Flush()
}

func runStats(ctx context.Context, cmd *cli.Command) error {
	c, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	q := url.Values{}
	for _, name := range []string{"provider", "since", "until"} {
		if v := cmd.String(name); v != "" {
			q.Set(name, v)
		}
	}
	path := "/api/stats"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var stats struct {
		Total         int64            `json:"total"`
		ByOutcome     map[string]int64 `json:"by_outcome"`
		AvgDurationMS float64          `json:"avg_duration_ms"`
		UptimeSeconds int64            `json:"uptime_seconds"`
		Subscribers   int              `json:"subscribers"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return err
	}

	fmt.Printf("exchanges: %d (avg %.0fms)\n", stats.Total, stats.AvgDurationMS)
	outcomes := make([]string, 0, len(stats.ByOutcome))
	for o := range stats.ByOutcome {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Printf("  %-14s %d\n", o, stats.ByOutcome[o])
	}
	fmt.Printf("uptime: %s, watch links: %d\n", time.Duration(stats.UptimeSeconds)*time.Second, stats.Subscribers)
	return nil
}

func runToken(ctx context.Context, cmd *cli.Command) error {
	path := configPath(cmd)
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured in %s", path)
	}

	token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate(cmd.String("subject"), cmd.Duration("expires"))
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}
