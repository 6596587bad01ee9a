package app

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"

	"cmportal/domain/reference"
	"cmportal/internal"

	"github.com/stretchr/testify/require"
)

const testTopic = "Increase Force - High"

type staticTables struct {
	tables *reference.Tables
	err    error
	calls  atomic.Int32
}

func (s *staticTables) Tables(ctx context.Context) (*reference.Tables, error) {
	s.calls.Add(1)
	return s.tables, s.err
}

func quietLogger() *internal.Logger {
	return internal.NewLogger(internal.LogLevelError)
}

// fixtureTables is a four protocol catalog:
//
//	id  Electrical Stimulation  Fatty Acids  Serum  Matrigel
//	1   x                       x
//	2   x                                    x
//	3                           x            x      x
//	4
func fixtureTables(t *testing.T) *reference.Tables {
	t.Helper()

	matrix, err := reference.NewFeatureMatrix(
		[]string{"Protocol ID", "Electrical Stimulation", "Fatty Acids", "Serum", "Matrigel"},
		[][]string{
			{"1", "True", "True", "False", "False"},
			{"2", "True", "False", "True", "False"},
			{"3", "False", "True", "True", "True"},
			{"4", "False", "False", "False", "False"},
		},
	)
	require.NoError(t, err)

	metadata, err := reference.NewMetadataTable(
		[]string{"Protocol ID", "Title", "DOI", "Increase Force", "Beat Rate (bpm)", "T-tubule Structure (Found)"},
		[][]string{
			{"1", "Paced tissue", "10.1/a", "", "30", "Yes"},
			{"2", "Serum culture", "10.1/b", "0.2", "", ""},
			{"3", "Lipid maturation", "10.1/c", "0.8", "nan", ""},
			{"4", "Baseline", "10.1/d", "", "", ""},
		},
	)
	require.NoError(t, err)

	categories := reference.NewColumnMapFromEntries(
		[]string{"Protocol Variable", "Cell Profile"},
		map[string][]string{
			"Protocol Variable": {"Electrical Stimulation", "Fatty Acids"},
			"Cell Profile":      {"Serum"},
		},
	)
	topics := reference.NewColumnMapFromEntries(
		[]string{
			testTopic,
			"Sarcomere Length (um) Quantiles - Q1",
			"Sarcomere Length (um) Quantiles - Q2",
		},
		map[string][]string{
			testTopic:                              {"Fatty Acids", "Serum"},
			"Sarcomere Length (um) Quantiles - Q1": {"Electrical Stimulation"},
			"Sarcomere Length (um) Quantiles - Q2": {"Fatty Acids"},
		},
	)
	targets := reference.NewColumnMapFromEntries(
		[]string{"Contractility"},
		map[string][]string{"Contractility": {testTopic}},
	)
	causal := reference.NewColumnMapFromEntries(
		[]string{"Culture"},
		map[string][]string{"Culture": {"Serum", "Matrigel"}},
	)
	enrichments := reference.NewTable(
		[]string{"Target Label", "Prioritised Features", "Importance"},
		[][]string{
			{testTopic, "Fatty Acids", "0.4"},
			{testTopic, "Serum", "0.3"},
			{"Decrease Beat Rate", "Electrical Stimulation", "0.6"},
		},
	)

	tables := &reference.Tables{
		Matrix:            matrix,
		Metadata:          metadata,
		Categories:        categories,
		CausalCategories:  causal,
		TargetParameters:  targets,
		Topics:            topics,
		Enrichments:       enrichments,
		SelectedVariables: []string{"Fatty Acids"},
	}
	require.NoError(t, tables.Validate())
	return tables
}

func fixtureProvider(t *testing.T) *staticTables {
	return &staticTables{tables: fixtureTables(t)}
}

func referenceTopics(entries map[string][]string) *reference.ColumnMap {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return reference.NewColumnMapFromEntries(keys, entries)
}
