package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mariotoffia/goannoy/builder"
	"github.com/mariotoffia/goannoy/interfaces"
)

const (
	IndexFilename   = "index.ann"
	MappingFilename = "mapping.json"
)

// AnnoyIndex is the approximate companion to ExactIndex for corpora large
// enough that exhaustive scans hurt. It is built explicitly, persisted next
// to the data, and serves only the opt-in approximate search path; exact
// results always come from ExactIndex. Memory ids map to dense uint32 slots
// kept in a JSON sidecar.
type AnnoyIndex struct {
	mu        sync.RWMutex
	idx       interfaces.AnnoyIndex[float32, uint32]
	dimension int
	idToSlot  map[string]uint32
	slotToID  map[uint32]string
	nextSlot  uint32
	basePath  string
	built     bool
}

type slotMapping struct {
	IDToSlot map[string]uint32 `json:"id_to_slot"`
	SlotToID map[uint32]string `json:"slot_to_id"`
	NextSlot uint32            `json:"next_slot"`
}

func NewAnnoyIndex(basePath string, dimension int) (*AnnoyIndex, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	idx := builder.Index[float32, uint32]().
		AngularDistance(dimension).
		UseMultiWorkerPolicy().
		MmapIndexAllocator().
		Build()

	return &AnnoyIndex{
		idx:       idx,
		dimension: dimension,
		idToSlot:  make(map[string]uint32),
		slotToID:  make(map[uint32]string),
		basePath:  basePath,
	}, nil
}

func (a *AnnoyIndex) Add(id string, vec []float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(vec) != a.dimension {
		return invalidf("embedding", "dimension %d, index expects %d", len(vec), a.dimension)
	}

	slot, exists := a.idToSlot[id]
	if !exists {
		slot = a.nextSlot
		a.nextSlot++
		a.idToSlot[id] = slot
		a.slotToID[slot] = id
	}

	a.idx.AddItem(slot, vec)
	a.built = false
	return nil
}

// Remove unmaps the id. The vector stays in the annoy structure until the
// next full build; unmapped slots are dropped from search results.
func (a *AnnoyIndex) Remove(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot, exists := a.idToSlot[id]
	if !exists {
		return
	}
	delete(a.idToSlot, id)
	delete(a.slotToID, slot)
}

func (a *AnnoyIndex) Build(numTrees int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.idx.Build(numTrees, -1)
	a.built = true
}

func (a *AnnoyIndex) Search(query []float32, k int) ([]Hit, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.built {
		return nil, fmt.Errorf("index not built")
	}
	if len(query) != a.dimension {
		return nil, invalidf("query", "dimension %d, index expects %d", len(query), a.dimension)
	}

	if k > len(a.idToSlot) {
		k = len(a.idToSlot)
	}
	if k == 0 {
		return nil, nil
	}

	searchCtx := a.idx.CreateContext()
	slots, distances := a.idx.GetNnsByVector(query, k, -1, searchCtx)

	results := make([]Hit, 0, len(slots))
	for i, slot := range slots {
		id, exists := a.slotToID[slot]
		if !exists {
			continue
		}
		// Angular distance lies in [0, 2]; map it onto a 0-1 score.
		var score float32
		if i < len(distances) {
			score = 1.0 - distances[i]/2.0
		}
		results = append(results, Hit{ID: id, Score: score})
	}
	return results, nil
}

func (a *AnnoyIndex) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.idToSlot)
}

func (a *AnnoyIndex) Save() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	indexPath := filepath.Join(a.basePath, IndexFilename)
	if err := a.idx.Save(indexPath); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	mapping := slotMapping{
		IDToSlot: a.idToSlot,
		SlotToID: a.slotToID,
		NextSlot: a.nextSlot,
	}
	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	if err := os.WriteFile(filepath.Join(a.basePath, MappingFilename), data, 0644); err != nil {
		return fmt.Errorf("write mapping: %w", err)
	}
	return nil
}

func (a *AnnoyIndex) Load() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(a.basePath, MappingFilename))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read mapping: %w", err)
	}

	var mapping slotMapping
	if err := json.Unmarshal(data, &mapping); err != nil {
		return fmt.Errorf("unmarshal mapping: %w", err)
	}
	a.idToSlot = mapping.IDToSlot
	a.slotToID = mapping.SlotToID
	a.nextSlot = mapping.NextSlot

	indexPath := filepath.Join(a.basePath, IndexFilename)
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return nil
	}
	if err := a.idx.Load(indexPath); err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	a.built = true
	return nil
}
