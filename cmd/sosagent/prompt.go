package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"telecare-sos/internal/services"
)

// terminalPrompt is the only reader of the terminal. A single goroutine reads
// lines: a line answers the pending prompt when there is one and is handed to
// Lines otherwise. A choice is picked by number or by its label.
type terminalPrompt struct {
	in  io.Reader
	out io.Writer

	start  sync.Once
	asking sync.Mutex

	mu      sync.Mutex
	pending chan string
	readErr error

	free   chan string
	closed chan struct{}
}

func newTerminalPrompt(in io.Reader, out io.Writer) *terminalPrompt {
	return &terminalPrompt{
		in:     in,
		out:    out,
		free:   make(chan string, 1),
		closed: make(chan struct{}),
	}
}

// Lines delivers input typed while no prompt is waiting for an answer. A line
// arriving while the previous one is still unread is dropped.
func (p *terminalPrompt) Lines() <-chan string {
	p.start.Do(func() { go p.readLines() })
	return p.free
}

func (p *terminalPrompt) Ask(ctx context.Context, options services.PromptOptions) (string, error) {
	if len(options.Choices) == 0 {
		return "", errors.New("prompt has no choices")
	}

	p.asking.Lock()
	defer p.asking.Unlock()

	// Register before printing so the answer to this prompt cannot land on Lines.
	answer := make(chan string, 1)
	p.mu.Lock()
	p.pending = answer
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.pending == answer {
			p.pending = nil
		}
		p.mu.Unlock()
	}()
	p.start.Do(func() { go p.readLines() })

	fmt.Fprintf(p.out, "\n%s\n%s\n", options.Title, options.Message)
	for i, choice := range options.Choices {
		fmt.Fprintf(p.out, "  [%d] %s\n", i+1, choice)
	}
	fmt.Fprint(p.out, "> ")

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-answer:
		return matchChoice(line, options.Choices)
	case <-p.closed:
		select {
		case line := <-answer:
			return matchChoice(line, options.Choices)
		default:
		}
		p.mu.Lock()
		err := p.readErr
		p.mu.Unlock()
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
}

func (p *terminalPrompt) readLines() {
	reader := bufio.NewReader(p.in)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			p.deliver(strings.TrimSpace(line))
		}
		if err != nil {
			p.mu.Lock()
			p.readErr = err
			p.mu.Unlock()
			close(p.closed)
			return
		}
	}
}

func (p *terminalPrompt) deliver(line string) {
	p.mu.Lock()
	target := p.pending
	p.pending = nil
	p.mu.Unlock()

	if target != nil {
		target <- line
		return
	}
	select {
	case p.free <- line:
	default:
	}
}

func matchChoice(input string, choices []string) (string, error) {
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(choices) {
		return choices[n-1], nil
	}
	for _, choice := range choices {
		if strings.EqualFold(input, choice) {
			return choice, nil
		}
	}
	return "", fmt.Errorf("unknown choice %q", input)
}
