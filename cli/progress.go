package cli

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/galihrivanto/unipig/indicator"
)

// progress is a loading bar drawn by its own goroutine.
type progress struct {
	stop chan struct{}
	done chan struct{}
}

func startProgress(out io.Writer) *progress {
	p := &progress{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(p.done)
		showProgress(out, p.stop)
	}()
	return p
}

// Stop clears the bar and waits for it to be gone.
func (p *progress) Stop() {
	close(p.stop)
	<-p.done
}

// showProgress draws the loading bar on out until stop is closed.
func showProgress(out io.Writer, stop <-chan struct{}) {
	curve := indicator.ProgressCurve(rand.New(rand.NewSource(time.Now().UnixNano())))
	start := time.Now()

	ticker := time.NewTicker(indicator.BaseInterval / 5)
	defer ticker.Stop()
	for {
		fmt.Fprintf(out, "\r%s", indicator.Bar(curve.At(time.Since(start)), 40))
		select {
		case <-stop:
			fmt.Fprint(out, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}

// printPulses reports balance increases not yet shown.
func printPulses(pulses []indicator.Pulse) {
	for _, p := range pulses {
		fmt.Printf("Balance up to %.4f\n", p.Total)
	}
}
