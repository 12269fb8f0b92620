package nomad

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/perotf-lab/expadvisor/pkg/config"
	"github.com/perotf-lab/expadvisor/pkg/models"
)

// API paths
const (
	EntriesPath = "/entries/query"
	ArchivePath = "/entries/archive/query"
)

// Retrieval describes which entries hold a sample's process parameters and
// measurements, and how values are read from them
type Retrieval struct {
	ProcessType string
	// StepField and StepPosition keep only one step of the experimental
	// plan. An empty StepField keeps every step.
	StepField    string
	StepPosition float64
	Process      Mapping

	MeasurementType string
	NamePath        string
	Measurement     Mapping
}

// RetrievalFromConfig builds a Retrieval from the nomad section
func RetrievalFromConfig(n *config.Nomad) Retrieval {
	return Retrieval{
		ProcessType:     n.Process.EntryType,
		StepField:       n.Process.StepField,
		StepPosition:    n.Process.StepPosition,
		Process:         Mapping(n.Process.Mapping),
		MeasurementType: n.Measurement.EntryType,
		NamePath:        n.Measurement.NamePath,
		Measurement:     Mapping(n.Measurement.Mapping),
	}
}

// Pixel is one measured cell of a sample
type Pixel struct {
	Name   string
	Values models.Row
}

// Sample collects everything retrieved for one lab ID
type Sample struct {
	LabID   string
	EntryID string
	// Process is nil when no usable process step references the sample
	Process models.Row
	Pixels  []Pixel
}

// Samples is the result of a retrieval, in lab ID order
type Samples struct {
	ProcessColumns     []string
	MeasurementColumns []string
	Samples            []*Sample
	// Unresolved counts lab IDs with no entry in the database
	Unresolved int
	// Skipped counts process and measurement entries lacking a mapped value
	Skipped int
}

// ResolveEntryIDs maps lab IDs to entry IDs. Lab IDs without an entry are absent.
func (c *Client) ResolveEntryIDs(ctx context.Context, s *Session, labIDs []string) (map[string]string, error) {
	query := map[string]any{
		"required": map[string]any{"include": []string{"entry_id", "entry_name"}},
		"owner":    "visible",
		"query":    map[string]any{"results.eln.lab_ids": map[string]any{"any": labIDs}},
	}
	entries, err := c.Query(ctx, s, EntriesPath, query)
	if err != nil {
		return nil, fmt.Errorf("resolve entry ids: %w", err)
	}
	ids := make(map[string]string, len(entries))
	for _, e := range entries {
		name, id := e.Get("entry_name").String(), e.Get("entry_id").String()
		if name != "" && id != "" {
			ids[name] = id
		}
	}
	return ids, nil
}

// ReferencingEntries returns the archives of entryType that reference any of
// the given entry IDs
func (c *Client) ReferencingEntries(ctx context.Context, s *Session, entryIDs []string, entryType string) ([]Entry, error) {
	inner := map[string]any{"entry_references.target_entry_id": map[string]any{"any": entryIDs}}
	if entryType != "" {
		inner["entry_type"] = entryType
	}
	query := map[string]any{
		"required": map[string]any{"metadata": "*", "data": "*"},
		"owner":    "visible",
		"query":    inner,
	}
	entries, err := c.Query(ctx, s, ArchivePath, query)
	if err != nil {
		return nil, fmt.Errorf("fetch %s entries: %w", entryType, err)
	}
	return entries, nil
}

// FetchSamples resolves lab IDs to entries, reads the process parameters from
// the process step entries referencing each sample and the per-pixel
// measurements, and joins both onto the lab IDs
func (c *Client) FetchSamples(ctx context.Context, s *Session, labIDs []string, r Retrieval) (*Samples, error) {
	if len(r.Process) == 0 && len(r.Measurement) == 0 {
		return nil, fmt.Errorf("no process or measurement mapping configured")
	}
	res := &Samples{
		ProcessColumns:     r.Process.Columns(),
		MeasurementColumns: r.Measurement.Columns(),
	}

	resolved, err := c.ResolveEntryIDs(ctx, s, labIDs)
	if err != nil {
		return nil, err
	}
	byEntry := make(map[string]*Sample)
	byLab := make(map[string]*Sample)
	var entryIDs []string
	for _, lab := range labIDs {
		if _, dup := byLab[lab]; dup {
			continue
		}
		smp := &Sample{LabID: lab, EntryID: resolved[lab]}
		byLab[lab] = smp
		res.Samples = append(res.Samples, smp)
		if smp.EntryID == "" {
			res.Unresolved++
			c.log.Warn("sample not found", "lab_id", lab)
			continue
		}
		byEntry[smp.EntryID] = smp
		entryIDs = append(entryIDs, smp.EntryID)
	}
	if len(entryIDs) == 0 {
		return res, nil
	}

	if len(r.Process) > 0 {
		if err := c.joinProcess(ctx, s, entryIDs, r, byEntry, res); err != nil {
			return nil, err
		}
	}
	if len(r.Measurement) > 0 {
		if err := c.joinMeasurements(ctx, s, entryIDs, r, byLab, res); err != nil {
			return nil, err
		}
	}
	c.log.Info("samples retrieved",
		"samples", len(res.Samples),
		"unresolved", res.Unresolved,
		"skipped_entries", res.Skipped)
	return res, nil
}

func (c *Client) joinProcess(ctx context.Context, s *Session, entryIDs []string, r Retrieval, byEntry map[string]*Sample, res *Samples) error {
	entries, err := c.ReferencingEntries(ctx, s, entryIDs, r.ProcessType)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if r.StepField != "" {
			pos, ok := Number(e.Archive(r.StepField))
			if !ok || pos != r.StepPosition {
				continue
			}
		}
		row, err := r.Process.Extract(e)
		if err != nil {
			res.Skipped++
			c.log.Debug("process entry skipped", "entry_id", e.Get("entry_id").String(), "reason", err)
			continue
		}
		for _, ref := range e.Archive("metadata.entry_references").Array() {
			smp, ok := byEntry[ref.Get("target_entry_id").String()]
			if !ok {
				continue
			}
			if smp.Process != nil {
				if !sameRow(smp.Process, row) {
					c.log.Warn("conflicting process steps, keeping the first", "lab_id", smp.LabID)
				}
				continue
			}
			smp.Process = row.Clone()
		}
	}
	return nil
}

func (c *Client) joinMeasurements(ctx context.Context, s *Session, entryIDs []string, r Retrieval, byLab map[string]*Sample, res *Samples) error {
	entries, err := c.ReferencingEntries(ctx, s, entryIDs, r.MeasurementType)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fields := strings.Fields(e.Archive(r.NamePath).String())
		if len(fields) != 2 {
			res.Skipped++
			continue
		}
		smp, ok := byLab[fields[0]]
		if !ok {
			continue
		}
		row, err := r.Measurement.Extract(e)
		if err != nil {
			res.Skipped++
			c.log.Debug("measurement skipped", "lab_id", fields[0], "pixel", fields[1], "reason", err)
			continue
		}
		smp.Pixels = append(smp.Pixels, Pixel{Name: fields[1], Values: row})
	}
	for _, smp := range res.Samples {
		sort.SliceStable(smp.Pixels, func(i, j int) bool { return smp.Pixels[i].Name < smp.Pixels[j].Name })
	}
	return nil
}

func sameRow(a, b models.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
