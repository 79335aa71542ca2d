// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/strand/internal/config"
	"github.com/jeranaias/strand/internal/engine"
	"github.com/jeranaias/strand/internal/history"
	"github.com/jeranaias/strand/internal/registry"
	"github.com/jeranaias/strand/internal/sequence"
)

var (
	chatSequenceID int64
	chatSeed       string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation against the Sequence API server.

With --sequence, the existing sequence is fetched and continued; otherwise
a fresh one is created on first submission.

Inside the prompt:
  /new         start a fresh sequence
  /continue    ask for another assistant turn without a new message
  /quit        leave (Ctrl-D works too)
  Ctrl-C       stop the response currently streaming`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Int64Var(&chatSequenceID, "sequence", 0, "Continue an existing sequence by server ID")
	chatCmd.Flags().StringVar(&chatSeed, "seed", "", "Seed text prepended to every response")
}

func runChat(cmd *cobra.Command, args []string) error {
	printer := &streamPrinter{out: os.Stdout}

	a, err := newApp(registry.Options{Events: printer.events()})
	if err != nil {
		return err
	}
	defer a.close()
	printer.attach(a)

	var seq sequence.Sequence
	if chatSequenceID != 0 {
		detail, err := a.client.GetSequence(cmd.Context(), chatSequenceID)
		if err != nil {
			return fmt.Errorf("failed to fetch sequence %d: %w", chatSequenceID, err)
		}
		seq = sequenceFromDetail(detail, a.cfg.DefaultModel)
		printTranscript(os.Stdout, seq, a.cfg)
	} else {
		seq = sequence.New(a.cfg.DefaultModel)
	}

	current := &currentSession{s: a.registry.GetOrCreate(seq)}

	// Config edits take effect on the next submission without restarting
	// the REPL.
	watchPath := flagConfig
	if watchPath == "" {
		watchPath, _ = config.ConfigPath()
	}
	if watchPath != "" {
		cw, werr := config.NewWatcher(watchPath, func(cfg *config.Config) {
			a.reload(cfg)
			printer.setShowStatus(cfg.UI.ShowStatus)
			fmt.Fprintln(os.Stderr, statusStyle.Render("config reloaded"))
		})
		if werr == nil && cw.Watch() == nil {
			defer cw.Close()
		}
	}

	// Ctrl-C stops the in-flight response; at an idle prompt liner
	// handles it as an aborted read instead.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			current.get().Stop()
		}
	}()

	rl := liner.NewLiner()
	defer rl.Close()
	rl.SetCtrlCAborts(true)
	historyPath := replHistoryPath()
	if f, err := os.Open(historyPath); err == nil {
		rl.ReadHistory(f)
		f.Close()
	}
	defer saveReplHistory(rl, historyPath)

	fmt.Println(headerStyle.Render("strand - " + a.cfg.Server.URL))

	for {
		input, err := rl.Prompt("you> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		rl.AppendHistory(input)

		switch input {
		case "/quit", "/exit":
			return nil

		case "/new":
			current.set(a.registry.GetOrCreate(sequence.New(a.config().DefaultModel)))
			fmt.Println(noticeStyle.Render("started a new sequence"))
			continue

		case "/continue":
			err = current.get().Continue(cmd.Context(), a.continuationParams(chatSeed))

		default:
			err = current.get().Extend(cmd.Context(), input, a.continuationParams(chatSeed))
		}

		switch {
		case errors.Is(err, engine.ErrBusy):
			fmt.Println(noticeStyle.Render("a response is still streaming; Ctrl-C stops it"))
		case errors.Is(err, context.Canceled):
			fmt.Println(noticeStyle.Render("stopped"))
		case err != nil:
			// The error message was already committed to the transcript
			// by the stream handling; nothing further to print.
		}
	}
}

// currentSession guards the session pointer shared with the signal
// goroutine.
type currentSession struct {
	mu sync.Mutex
	s  *engine.Session
}

func (c *currentSession) get() *engine.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}

func (c *currentSession) set(s *engine.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s = s
}

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter renders observer callbacks. OnContent delivers the full
// response so far; the printer tracks what it already wrote and emits only
// the suffix.
type streamPrinter struct {
	mu         sync.Mutex
	out        io.Writer
	printed    int
	showStatus bool
	lastStatus string
	archive    *history.Archive
}

// attach binds post-construction dependencies from the app.
func (p *streamPrinter) attach(a *app) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.showStatus = a.cfg.UI.ShowStatus
	p.archive = a.archive
}

func (p *streamPrinter) setShowStatus(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.showStatus = v
}

func (p *streamPrinter) events() engine.Events {
	return engine.Events{
		OnBegin: func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.printed = 0
			p.lastStatus = ""
			fmt.Fprint(p.out, userStyle.Render("assistant> "))
		},

		OnContent: func(text string) {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.printed > len(text) {
				p.printed = 0
			}
			fmt.Fprint(p.out, assistantStyle.Render(text[p.printed:]))
			p.printed = len(text)
		},

		OnStatus: func(s string) {
			p.mu.Lock()
			defer p.mu.Unlock()
			if !p.showStatus || s == p.lastStatus {
				return
			}
			p.lastStatus = s
			fmt.Fprintln(os.Stderr, statusStyle.Render("["+s+"]"))
		},

		OnCommit: func(msg sequence.Message) {
			tmp, ok := msg.(sequence.Temporary)
			if !ok {
				return
			}
			p.mu.Lock()
			defer p.mu.Unlock()
			style := noticeStyle
			if tmp.Origin == sequence.OriginServerError {
				style = errorStyle
			}
			fmt.Fprintln(p.out)
			fmt.Fprintln(p.out, style.Render(tmp.Role+": "+tmp.Content))
		},

		OnAutoname: func(name string, first bool) {
			p.mu.Lock()
			defer p.mu.Unlock()
			fmt.Fprintln(p.out)
			fmt.Fprintln(p.out, titleStyle.Render("* "+name))
		},

		OnAnomaly: func(detail string) {
			fmt.Fprintln(os.Stderr, statusStyle.Render("anomaly: "+detail))
		},

		OnFinish: func(seq sequence.Sequence, err error) {
			p.mu.Lock()
			p.printed = 0
			p.lastStatus = ""
			archive := p.archive
			p.mu.Unlock()

			fmt.Fprintln(p.out)
			if err == nil && archive != nil {
				if _, aerr := archive.SaveFromSequence(context.Background(), seq); aerr != nil {
					fmt.Fprintln(os.Stderr, statusStyle.Render("archive: "+aerr.Error()))
				}
			}
		},
	}
}

// =============================================================================
// REPL HISTORY
// =============================================================================

func replHistoryPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "repl_history")
}

func saveReplHistory(rl *liner.State, path string) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	rl.WriteHistory(f)
}
