package render

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Workflow is a ComfyUI API-format graph keyed by node id
type Workflow map[string]*Node

type Node struct {
	ClassType string                 `json:"class_type"`
	Inputs    map[string]interface{} `json:"inputs"`
}

var samplers = []string{"euler", "euler_ancestral", "heun", "dpm_2", "dpm_2_ancestral", "lms", "ddim"}

// characterSteps is fixed; location renders pick a step count per call.
const characterSteps = 10

var workflowFiles = map[Kind]string{
	KindCharacter: "characters_api.json",
	KindLocation:  "locations_api.json",
}

// defaultWorkflow is a minimal text-to-image graph used when no workflow
// file is available for a kind.
const defaultWorkflow = `{
	"3": {"class_type": "KSampler", "inputs": {"seed": 0, "steps": 20, "cfg": 7, "sampler_name": "euler", "scheduler": "normal", "denoise": 1, "model": ["4", 0], "positive": ["6", 0], "negative": ["7", 0], "latent_image": ["5", 0]}},
	"4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "sd_xl_base_1.0.safetensors"}},
	"5": {"class_type": "EmptyLatentImage", "inputs": {"width": 1024, "height": 1024, "batch_size": 1}},
	"6": {"class_type": "CLIPTextEncode", "inputs": {"text": "prompt", "clip": ["4", 1]}},
	"7": {"class_type": "CLIPTextEncode", "inputs": {"text": "", "clip": ["4", 1]}},
	"8": {"class_type": "VAEDecode", "inputs": {"samples": ["3", 0], "vae": ["4", 2]}},
	"9": {"class_type": "SaveImage", "inputs": {"filename_prefix": "scene", "images": ["8", 0]}}
}`

// LoadWorkflow reads the kind's workflow file from dir. A missing or empty
// file yields the built-in default.
func LoadWorkflow(dir string, kind Kind) (Workflow, error) {
	name, ok := workflowFiles[kind]
	if !ok {
		return nil, fmt.Errorf("unknown render kind %q", kind)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return parseWorkflow([]byte(defaultWorkflow))
		}
		return nil, fmt.Errorf("failed to read workflow %s: %w", name, err)
	}
	wf, err := parseWorkflow(data)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow %s: %w", name, err)
	}
	if len(wf) == 0 {
		return parseWorkflow([]byte(defaultWorkflow))
	}
	return wf, nil
}

func parseWorkflow(data []byte) (Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, err
	}
	for id, n := range wf {
		if n == nil {
			delete(wf, id)
			continue
		}
		if n.Inputs == nil {
			n.Inputs = make(map[string]interface{})
		}
	}
	return wf, nil
}

// Clone deep-copies the workflow so a cached template is never mutated.
func (w Workflow) Clone() Workflow {
	data, _ := json.Marshal(w)
	out, _ := parseWorkflow(data)
	return out
}

// sortedIDs returns node ids in a stable order
func (w Workflow) sortedIDs() []string {
	ids := make([]string, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Customize injects the prompt and randomizes sampling. The positive prompt
// replaces every non-empty CLIPTextEncode text; the empty negative prompt is
// left alone. It returns the seed chosen.
func (w Workflow) Customize(kind Kind, prompt, generationID string, rng *rand.Rand) int64 {
	seed := rng.Int64N(2147483647) + 1

	for _, id := range w.sortedIDs() {
		n := w[id]
		switch n.ClassType {
		case "CLIPTextEncode":
			if text, ok := n.Inputs["text"].(string); ok && text != "" {
				n.Inputs["text"] = prompt
			}
		case "KSampler":
			n.Inputs["seed"] = seed
			if kind == KindCharacter {
				n.Inputs["steps"] = characterSteps
			} else {
				n.Inputs["steps"] = 20 + rng.IntN(21)
			}
			n.Inputs["cfg"] = float64(int((6.5+rng.Float64()*2)*10)) / 10
			n.Inputs["sampler_name"] = samplers[rng.IntN(len(samplers))]
		}
	}

	prefix := fmt.Sprintf("%s_%s_%d", kind, generationID, seed)
	for _, id := range w.sortedIDs() {
		if w[id].ClassType == "SaveImage" {
			w[id].Inputs["filename_prefix"] = prefix
			return seed
		}
	}

	// no SaveImage node: attach one to the decoder output
	if out := w.outputNodeID(); out != "" {
		w[w.nextID()] = &Node{
			ClassType: "SaveImage",
			Inputs: map[string]interface{}{
				"filename_prefix": prefix,
				"images":          []interface{}{out, 0},
			},
		}
	}
	return seed
}

func (w Workflow) outputNodeID() string {
	for _, id := range w.sortedIDs() {
		switch w[id].ClassType {
		case "VAEDecode", "PreviewImage":
			return id
		}
	}
	return ""
}

func (w Workflow) nextID() string {
	highest := 0
	for id := range w {
		if n, err := strconv.Atoi(id); err == nil && n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest + 1)
}

// Validate reports the nodes a workflow needs before it can be queued: a
// sampler, a non-empty positive prompt, and an image output.
func (w Workflow) Validate() error {
	var sampler, prompt, output bool
	for _, n := range w {
		switch n.ClassType {
		case "KSampler":
			sampler = true
		case "CLIPTextEncode":
			if text, ok := n.Inputs["text"].(string); ok && text != "" {
				prompt = true
			}
		case "SaveImage", "VAEDecode", "PreviewImage":
			output = true
		}
	}
	switch {
	case !sampler:
		return fmt.Errorf("workflow has no KSampler node")
	case !prompt:
		return fmt.Errorf("workflow has no CLIPTextEncode node with prompt text")
	case !output:
		return fmt.Errorf("workflow has no image output node")
	}
	return nil
}
