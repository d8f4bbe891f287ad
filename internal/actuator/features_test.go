package actuator_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/actuator"
	"github.com/cucumber/godog"
)

var epoch = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// debounceWorld is the per-scenario state shared by the steps.
type debounceWorld struct {
	machine  *actuator.StateMachine
	port     *actuator.TestablePort
	link     *actuator.Link
	emitted  []actuator.Transition
	lastErr  error
	lastSent *actuator.Transition
}

func (w *debounceWorld) stateMachine(hold, cooldown int) error {
	w.machine = actuator.NewStateMachine(time.Duration(hold)*time.Second, time.Duration(cooldown)*time.Second)
	w.port = actuator.NewTestablePort()
	w.link = actuator.NewLink("feature", w.port)
	return nil
}

func (w *debounceWorld) linkFailsNextWrite() error {
	w.port.SetWriteError(errors.New("write failed"))
	return nil
}

func (w *debounceWorld) observe(seconds float64, present, defective bool) {
	t := epoch.Add(time.Duration(seconds * float64(time.Second)))
	tr := w.machine.Step(t, present, defective)
	if !tr.Emitted {
		return
	}
	w.emitted = append(w.emitted, tr)
	w.lastSent = &w.emitted[len(w.emitted)-1]
	w.lastErr = w.link.Send(tr.Command)
}

func (w *debounceWorld) cleanPackage(seconds float64) error {
	w.observe(seconds, true, false)
	return nil
}

func (w *debounceWorld) defectivePackage(seconds float64) error {
	w.observe(seconds, true, true)
	return nil
}

func (w *debounceWorld) emptyZone(seconds float64) error {
	w.observe(seconds, false, false)
	return nil
}

func (w *debounceWorld) noCommand() error {
	if len(w.emitted) != 0 {
		return fmt.Errorf("expected no command, got %d", len(w.emitted))
	}
	return nil
}

func (w *debounceWorld) exactlyOne(name string) error {
	n := 0
	for _, tr := range w.emitted {
		if tr.Command.String() == name {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("expected exactly one %q command, got %d", name, n)
	}
	return nil
}

func (w *debounceWorld) totalCommands(n int) error {
	if len(w.emitted) != n {
		return fmt.Errorf("expected %d commands, got %d", n, len(w.emitted))
	}
	return nil
}

func (w *debounceWorld) stateIs(name string) error {
	if got := w.machine.State().String(); got != name {
		return fmt.Errorf("expected state %q, got %q", name, got)
	}
	return nil
}

func (w *debounceWorld) lastWithinCooldown() error {
	if w.lastSent == nil || !w.lastSent.WithinCooldown {
		return errors.New("last command was not flagged as within the cooldown")
	}
	return nil
}

func (w *debounceWorld) lastDeliveryFailed() error {
	var le *actuator.LinkError
	if !errors.As(w.lastErr, &le) {
		return fmt.Errorf("expected a link error, got %v", w.lastErr)
	}
	return nil
}

// InitializeScenario registers the debounce steps.
func InitializeScenario(sc *godog.ScenarioContext) {
	w := &debounceWorld{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*w = debounceWorld{}
		return ctx, nil
	})

	sc.Step(`^a state machine with a hold of (\d+) seconds and a cooldown of (\d+) seconds?$`, w.stateMachine)
	sc.Step(`^the serial link fails the next write$`, w.linkFailsNextWrite)
	sc.Step(`^at ([\d.]+) seconds the zone shows a clean package$`, w.cleanPackage)
	sc.Step(`^at ([\d.]+) seconds the zone shows a defective package$`, w.defectivePackage)
	sc.Step(`^at ([\d.]+) seconds the zone is empty$`, w.emptyZone)
	sc.Step(`^no command is sent$`, w.noCommand)
	sc.Step(`^exactly one "([^"]*)" command has been sent$`, w.exactlyOne)
	sc.Step(`^(\d+) commands have been sent in total$`, w.totalCommands)
	sc.Step(`^the state is "([^"]*)"$`, w.stateIs)
	sc.Step(`^the last command was within the cooldown$`, w.lastWithinCooldown)
	sc.Step(`^the last delivery failed$`, w.lastDeliveryFailed)
}

// TestFeatures runs the Godog suite over features/.
func TestFeatures(t *testing.T) {
	entries, err := os.ReadDir("features")
	if err != nil {
		t.Fatalf("failed to read features directory: %v", err)
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "progress"
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".feature") {
			continue
		}
		featurePath := filepath.Join("features", e.Name())

		t.Run(e.Name(), func(t *testing.T) {
			suite := godog.TestSuite{
				ScenarioInitializer: InitializeScenario,
				Options: &godog.Options{
					Format:   format,
					Tags:     os.Getenv("GODOG_TAGS"),
					Paths:    []string{featurePath},
					TestingT: t,
				},
			}
			if suite.Run() != 0 {
				t.Fatalf("non-zero status returned for %s", featurePath)
			}
		})
	}
}
