package detector

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/MeKo-Tech/boxguard/internal/utils"
	"gopkg.in/yaml.v3"
)

// ScriptStep is one entry of a detection script: the same detections are
// returned for Repeat consecutive frames.
type ScriptStep struct {
	Repeat     int            `yaml:"repeat"`
	Detections []ScriptedItem `yaml:"detections"`
}

// ScriptedItem is a detection in a script file. Box is [x1, y1, x2, y2].
type ScriptedItem struct {
	Label      string     `yaml:"label"`
	Box        [4]float64 `yaml:"box"`
	Confidence float64    `yaml:"confidence"`
}

// Script replays recorded detections frame by frame instead of running a
// model. Once exhausted it reports nothing.
type Script struct {
	mu    sync.Mutex
	steps []ScriptStep
	step  int
	used  int
}

// LoadScript reads a YAML detection script.
func LoadScript(path string) (*Script, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read detection script: %w", err)
	}
	return ParseScript(raw)
}

// ParseScript decodes a YAML detection script.
func ParseScript(raw []byte) (*Script, error) {
	var steps []ScriptStep
	if err := yaml.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("parse detection script: %w", err)
	}
	for i := range steps {
		if steps[i].Repeat <= 0 {
			steps[i].Repeat = 1
		}
	}
	return &Script{steps: steps}, nil
}

// Detect returns the scripted detections for the next frame. The image is ignored.
func (s *Script) Detect(image.Image) ([]Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step >= len(s.steps) {
		return nil, nil
	}
	st := s.steps[s.step]
	s.used++
	if s.used >= st.Repeat {
		s.step++
		s.used = 0
	}

	dets := make([]Detection, len(st.Detections))
	for i, it := range st.Detections {
		conf := it.Confidence
		if conf == 0 {
			conf = 1
		}
		dets[i] = Detection{
			Box:        utils.NewBox(it.Box[0], it.Box[1], it.Box[2], it.Box[3]),
			Label:      NormalizeLabel(it.Label),
			ClassID:    -1,
			Confidence: conf,
		}
	}
	return dets, nil
}

// Remaining reports how many frames the script still covers.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := s.step; i < len(s.steps); i++ {
		n += s.steps[i].Repeat
	}
	return n - s.used
}
