// Package trialbank loads the prepared study trials and samples sessions from them.
package trialbank

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/memelab/internal/domain"
)

// ImageURLPrefix is where study images are served from.
const ImageURLPrefix = "/static/images/"

var requiredColumns = []string{"id", "meme_text", "gold_sentiment", "img_filename"}

// Bank is an immutable set of trials with a shared random source.
type Bank struct {
	trials []domain.Trial

	mu  sync.Mutex
	rng *rand.Rand
}

// Load reads a study CSV from disk.
func Load(csvPath string) (*Bank, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open study csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	trials, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", csvPath, err)
	}
	return New(trials, uint64(time.Now().UnixNano())), nil
}

// New wraps already parsed trials. The seed drives sampling.
func New(trials []domain.Trial, seed uint64) *Bank {
	return &Bank{
		trials: trials,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Len returns the number of trials in the bank.
func (b *Bank) Len() int {
	return len(b.trials)
}

// Sample draws min(n, Len()) distinct trials in random order.
func (b *Bank) Sample(n int) []domain.Trial {
	if n > len(b.trials) {
		n = len(b.trials)
	}
	if n <= 0 {
		return []domain.Trial{}
	}

	b.mu.Lock()
	perm := b.rng.Perm(len(b.trials))
	b.mu.Unlock()

	out := make([]domain.Trial, n)
	for i := range out {
		out[i] = b.trials[perm[i]]
	}
	return out
}

// Parse reads study rows. The image file name comes from img_filename, or
// from the base name of img_path / image_name when that column is absent.
func Parse(r io.Reader) ([]domain.Trial, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	imgCol := "img_filename"
	if _, ok := cols[imgCol]; !ok {
		switch {
		case has(cols, "img_path"):
			imgCol = "img_path"
		case has(cols, "image_name"):
			imgCol = "image_name"
		default:
			return nil, errors.New("csv needs 'img_filename' or 'img_path'/'image_name'")
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if c == "img_filename" {
			continue
		}
		if !has(cols, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv missing required columns: %v", missing)
	}

	var trials []domain.Trial
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := row{cols: cols, rec: rec}
		t, err := row.trial(imgCol)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		trials = append(trials, t)
	}
	return trials, nil
}

func has(cols map[string]int, name string) bool {
	_, ok := cols[name]
	return ok
}

type row struct {
	cols map[string]int
	rec  []string
}

func (r row) get(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.rec) {
		return ""
	}
	v := strings.TrimSpace(r.rec[i])
	if strings.EqualFold(v, "nan") || strings.EqualFold(v, "null") {
		return ""
	}
	return v
}

func (r row) str(name string) *string {
	v := r.get(name)
	if v == "" {
		return nil
	}
	return &v
}

func (r row) float(name string) (*float64, error) {
	v := r.get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}
	return &f, nil
}

func (r row) trial(imgCol string) (domain.Trial, error) {
	file := path.Base(strings.ReplaceAll(r.get(imgCol), `\`, "/"))
	t := domain.Trial{
		ID:            domain.TrialID(r.get("id")),
		ImgURL:        ImageURLPrefix + file,
		MemeText:      r.get("meme_text"),
		GoldSentiment: r.str("gold_sentiment"),
		MMTop1:        r.str("mm_top1"),
		MMTop2:        r.str("mm_top2"),
		MMTop3:        r.str("mm_top3"),
		TextRationale: r.str("text_rationale"),
		NeighborID1:   r.str("neighbor_id_1"),
		NeighborID2:   r.str("neighbor_id_2"),
	}

	floats := []struct {
		col string
		dst **float64
	}{
		{"mm_p1", &t.MMP1},
		{"mm_p2", &t.MMP2},
		{"mm_p3", &t.MMP3},
		{"mm_p_neg", &t.MMPNeg},
		{"mm_p_neu", &t.MMPNeu},
		{"mm_p_pos", &t.MMPPos},
	}
	for _, f := range floats {
		v, err := r.float(f.col)
		if err != nil {
			return domain.Trial{}, err
		}
		*f.dst = v
	}
	return t, nil
}
