package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/ent0n29/uplink/internal/dialogue"
	"github.com/ent0n29/uplink/internal/protocol"
)

type options struct {
	baseURL        string
	personaID      string
	turns          int
	turnTimeout    time.Duration
	interTurnDelay time.Duration
	texts          []string
	stopOnCritical bool
	verbose        bool
}

type report struct {
	OK             int
	Failures       map[string]int
	Latencies      []time.Duration
	CriticalAtTurn int
}

// serverMessage is the union of the websocket replies.
type serverMessage struct {
	Type      protocol.MessageType `json:"type"`
	RequestID string               `json:"request_id"`
	Code      string               `json:"code"`
	Detail    string               `json:"detail"`
	Message   string               `json:"message"`
	Turn      *dialogue.Turn       `json:"turn"`
}

var defaultQuestions = []string{
	"Where were you at 02:00?",
	"Who else had access to the archive?",
	"Why did the logs stop at midnight?",
	"You were seen at the loading dock.",
}

var (
	cfg      options
	textsRaw string
)

var rootCmd = &cobra.Command{
	Use:   "perfuplink",
	Short: "Replay an interrogation over the uplink websocket and report latency",
	Long: `Replay an interrogation over the uplink websocket and report latency.

Every turn carries the full history accumulated so far, so later turns exercise
progressively larger prompts.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := normalizeOptions(&cfg, textsRaw); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.turns+1)*cfg.turnTimeout)
		defer cancel()
		rep, err := run(ctx, cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), rep)
		return nil
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "uplinkd base URL")
	flags.StringVar(&cfg.personaID, "persona-id", "unit-734", "subject to interrogate")
	flags.IntVar(&cfg.turns, "turns", 8, "number of turns to replay")
	flags.DurationVar(&cfg.turnTimeout, "turn-timeout", 2*time.Minute, "timeout waiting for each reply")
	flags.DurationVar(&cfg.interTurnDelay, "inter-turn", 0, "delay between turns")
	flags.StringVar(&textsRaw, "texts", "", "questions separated by '|' (optional)")
	flags.BoolVar(&cfg.stopOnCritical, "stop-on-critical", false, "stop once the subject reaches a critical state")
	flags.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "perfuplink: %v\n", err)
		os.Exit(1)
	}
}

func normalizeOptions(o *options, texts string) error {
	o.baseURL = strings.TrimRight(strings.TrimSpace(o.baseURL), "/")
	if o.baseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	if strings.TrimSpace(o.personaID) == "" {
		return fmt.Errorf("persona-id is required")
	}
	if o.turns <= 0 {
		return fmt.Errorf("turns must be > 0")
	}
	if o.turnTimeout < time.Second {
		o.turnTimeout = time.Second
	}
	if o.interTurnDelay < 0 {
		o.interTurnDelay = 0
	}

	o.texts = nil
	for _, part := range strings.Split(texts, "|") {
		if t := strings.TrimSpace(part); t != "" {
			o.texts = append(o.texts, t)
		}
	}
	if len(o.texts) == 0 {
		o.texts = append([]string(nil), defaultQuestions...)
	}
	return nil
}

func run(ctx context.Context, o options, out io.Writer) (report, error) {
	rep := report{Failures: map[string]int{}}

	wsURL, err := wsURLFor(o.baseURL)
	if err != nil {
		return rep, fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return rep, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	var history []dialogue.Turn
	for i := 0; i < o.turns; i++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		input := o.texts[i%len(o.texts)]
		operator := dialogue.NewOperatorTurn(input)
		requestID := fmt.Sprintf("perf-%d", i+1)

		start := time.Now()
		err := conn.WriteJSON(protocol.OperatorTurn{
			Type:      protocol.TypeOperatorTurn,
			RequestID: requestID,
			PersonaID: o.personaID,
			History:   history,
			Input:     input,
		})
		if err != nil {
			return rep, fmt.Errorf("turn %d send: %w", i+1, err)
		}

		reply, err := awaitReply(conn, requestID, o.turnTimeout)
		if err != nil {
			return rep, fmt.Errorf("turn %d await reply: %w", i+1, err)
		}
		elapsed := time.Since(start)
		history = append(history, operator)

		switch reply.Type {
		case protocol.TypePersonaTurn:
			rep.OK++
			rep.Latencies = append(rep.Latencies, elapsed)
			if reply.Turn != nil {
				history = append(history, *reply.Turn)
			}
			critical := reply.Turn != nil && reply.Turn.State != nil && reply.Turn.State.IsCritical
			if o.verbose {
				fmt.Fprintf(out, "perfuplink: turn %d/%d %s latency=%s%s\n", i+1, o.turns, stateLine(reply.Turn), elapsed.Round(time.Millisecond), criticalMark(critical))
			}
			if critical && rep.CriticalAtTurn == 0 {
				rep.CriticalAtTurn = i + 1
				if o.stopOnCritical {
					return rep, nil
				}
			}
		case protocol.TypeUplinkFailure:
			rep.Failures[reply.Code]++
			if o.verbose {
				fmt.Fprintf(out, "perfuplink: turn %d/%d failure=%s %s\n", i+1, o.turns, reply.Code, reply.Message)
			}
		default:
			return rep, fmt.Errorf("turn %d rejected: %s %s", i+1, reply.Code, reply.Detail)
		}

		if o.interTurnDelay > 0 && i < o.turns-1 {
			time.Sleep(o.interTurnDelay)
		}
	}
	return rep, nil
}

func awaitReply(conn *websocket.Conn, requestID string, timeout time.Duration) (serverMessage, error) {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return serverMessage{}, err
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		// Parse errors carry no request id.
		if msg.RequestID == requestID || (msg.Type == protocol.TypeErrorEvent && msg.RequestID == "") {
			return msg, nil
		}
	}
}

func wsURLFor(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/uplink/ws"
	return u.String(), nil
}

func stateLine(t *dialogue.Turn) string {
	if t == nil || t.State == nil {
		return "state=?"
	}
	return fmt.Sprintf("stability=%d aggression=%d deception=%d", t.State.Stability, t.State.Aggression, t.State.Deception)
}

func criticalMark(critical bool) string {
	if critical {
		return " CRITICAL"
	}
	return ""
}

// percentile uses nearest-rank on a sorted copy.
func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := int(p/100*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func printSummary(out io.Writer, rep report) {
	fmt.Fprintf(out, "perfuplink: ok=%d p50=%s p95=%s max=%s\n",
		rep.OK,
		percentile(rep.Latencies, 50).Round(time.Millisecond),
		percentile(rep.Latencies, 95).Round(time.Millisecond),
		percentile(rep.Latencies, 100).Round(time.Millisecond),
	)
	for code, n := range rep.Failures {
		fmt.Fprintf(out, "perfuplink: failures %s=%d\n", code, n)
	}
	if rep.CriticalAtTurn > 0 {
		fmt.Fprintf(out, "perfuplink: critical at turn %d\n", rep.CriticalAtTurn)
	}
}
