package excel

import (
	"strings"

	"cmportal/domain/protocol"
	"cmportal/domain/reference"
	"cmportal/internal/scoring"
)

// fieldAliases maps form-style field names to indicator names
var fieldAliases = map[string]string{
	"ProtocolName":                                  protocol.NameKey,
	"Protocol Name":                                 protocol.NameKey,
	"Sarcomere_Length_um":                           scoring.SarcomereLength,
	"Cell_Area_um2":                                 scoring.CellArea,
	"T-tubule_Structure_Found":                      scoring.TTubuleStructure,
	"Contractile_Force_mN":                          scoring.ContractileForce,
	"Contractile_Stress_mN_mm2":                     scoring.ContractileStress,
	"Contraction_Upstroke_Velocity_um_s":            scoring.ContractionUpstroke,
	"Calcium_Flux_Amplitude_F_F0":                   scoring.CalciumFluxAmplitude,
	"Time_to_Calcium_Flux_Peak_ms":                  scoring.TimeToCalciumPeak,
	"Time_from_Calcium_Peak_to_Relaxation_ms":       scoring.TimeCalciumToRelaxation,
	"Conduction_Velocity_from_Calcium_Imaging_cm_s": scoring.CalciumConduction,
	"Action_Potential_Conduction_Velocity_cm_s":     scoring.APConductionVelocity,
	"Action_Potential_Amplitude_mV":                 scoring.APAmplitude,
	"Resting_Membrane_Potential_mV":                 scoring.RestingMembranePotential,
	"Beat_Rate_bpm":                                 scoring.BeatRate,
	"Max_Capture_Rate_of_Paced_CMs_Hz":              scoring.MaxCaptureRate,
	"MYH7_Percentage_MYH6":                          scoring.MYH7Percentage,
	"MYL2_Percentage_MYL7":                          scoring.MYL2Percentage,
	"TNNI3_Percentage_TNNI1":                        scoring.TNNI3Percentage,
	"TNNI3_Percentage_TTNI1":                        scoring.TNNI3Percentage, // misspelled in the fillable form
	"3D_Estimated_Cell_Density_mil_cells_mL":        scoring.CellDensity3D,
}

// unitReplacements are applied in order; longer tokens first
var unitReplacements = strings.NewReplacer(
	"μm²", "um2",
	"µm²", "um2",
	"um²", "um2",
	"mm²", "mm2",
	"μm", "um",
	"µm", "um",
	"%C2%B2", "2",
	"²", "2",
)

// NormalizeFieldName replaces unit symbols with their ASCII spelling
func NormalizeFieldName(name string) string {
	return strings.TrimSpace(unitReplacements.Replace(name))
}

// CanonicalField resolves an uploaded field name to an indicator name or
// protocol.NameKey. Exact indicator names match case-insensitively.
func CanonicalField(name string) (string, bool) {
	if v, ok := fieldAliases[strings.TrimSpace(name)]; ok {
		return v, true
	}
	normalized := NormalizeFieldName(name)
	if v, ok := fieldAliases[normalized]; ok {
		return v, true
	}
	if strings.EqualFold(normalized, protocol.NameKey) {
		return protocol.NameKey, true
	}
	for _, ind := range scoring.RangedIndicators() {
		if strings.EqualFold(normalized, ind) {
			return ind, true
		}
	}
	return "", false
}

// ParseExperimentalData builds an indicator record from uploaded rows. Two
// layouts are accepted: wide (a header row of field names over one value row)
// and long (one "field, value" pair per row). Unrecognised field names are
// returned separately.
func ParseExperimentalData(rows [][]string) (protocol.Record, []string) {
	record := protocol.Record{}
	var unknown []string

	put := func(field, value string) {
		if canonical, ok := CanonicalField(field); ok {
			record[canonical] = strings.TrimSpace(value)
			return
		}
		if strings.TrimSpace(field) != "" {
			unknown = append(unknown, field)
		}
	}

	if len(rows) == 0 {
		return record, nil
	}

	if isWide(rows) {
		var values []string
		if len(rows) > 1 {
			values = rows[1]
		}
		for j, field := range rows[0] {
			v := ""
			if j < len(values) {
				v = values[j]
			}
			put(field, v)
		}
		return record, unknown
	}

	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		v := ""
		if len(row) > 1 {
			v = row[1]
		}
		put(row[0], v)
	}
	return record, unknown
}

// isWide reports whether the first row is a header of field names. A long
// layout never has a field name outside its first column.
func isWide(rows [][]string) bool {
	for j, cell := range rows[0] {
		if j == 0 {
			continue
		}
		if _, ok := CanonicalField(cell); ok {
			return true
		}
	}
	for _, row := range rows {
		if len(row) != 1 {
			return false
		}
	}
	return len(rows) == 2
}

// ParseFeatureList selects the protocol's features among candidates. Accepted
// layouts are a header of feature names over one boolean row, or one feature
// per row with an optional boolean second column. Names match
// case-insensitively; the result keeps candidate order. Names that are not
// candidates are returned separately.
func ParseFeatureList(rows [][]string, candidates []protocol.Feature) ([]protocol.Feature, []string) {
	lookup := make(map[string]protocol.Feature, len(candidates))
	for _, c := range candidates {
		lookup[strings.ToLower(c)] = c
	}

	chosen := make(map[protocol.Feature]bool)
	var unknown []string

	mark := func(name, flag string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		f, ok := lookup[strings.ToLower(name)]
		if !ok {
			unknown = append(unknown, name)
			return
		}
		if flag != "" {
			if on, err := reference.ParseBool(flag); err != nil || !on {
				return
			}
		}
		chosen[f] = true
	}

	if len(rows) == 2 && len(rows[0]) > 2 {
		for j, name := range rows[0] {
			flag := "false"
			if j < len(rows[1]) {
				flag = rows[1][j]
			}
			mark(name, flag)
		}
	} else {
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			flag := ""
			if len(row) > 1 {
				flag = row[1]
			}
			mark(row[0], flag)
		}
	}

	out := make([]protocol.Feature, 0, len(chosen))
	for _, c := range candidates {
		if chosen[c] {
			out = append(out, c)
		}
	}
	return out, unknown
}
