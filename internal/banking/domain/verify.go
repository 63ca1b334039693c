package banking

import (
	"fmt"
	"math"
	"sort"
)

// Verify checks the audit invariants of a settled snapshot: stage 0
// matching, per-row per-side conservation through stages 1 and 2,
// non-negative pools, and per-group balance of generation-side against
// demand-side deductions. A stored snapshot that fails Verify was not
// produced by a correct settlement pass.
func Verify(records []SettlementRecord, epsilon float64) error {
	if epsilon <= 0 {
		epsilon = defaultEpsilon
	}
	for i := range records {
		if err := verifyRecord(&records[i], epsilon); err != nil {
			return err
		}
	}
	if err := verifyGroups(records, intraGroupKey, intraStage, epsilon); err != nil {
		return err
	}
	if err := verifyGroups(records, interGroupKey, interStage, epsilon); err != nil {
		return err
	}
	return nil
}

func verifyRecord(r *SettlementRecord, epsilon float64) error {
	wantMatched := math.Min(r.SurplusGenerationSum, r.SurplusDemandSum)
	if math.Abs(r.MatchedSettledSum-wantMatched) > epsilon {
		return fmt.Errorf("%w: %s matched=%v want=%v", ErrConservation, r.Key(), r.MatchedSettledSum, wantMatched)
	}

	for _, check := range []struct {
		label  string
		before float64
		after  float64
	}{
		{"generation intra", r.SurplusGenerationSum - r.MatchedSettledSum, r.SurplusGenerationAfterIntra},
		{"demand intra", r.SurplusDemandSum - r.MatchedSettledSum, r.SurplusDemandAfterIntra},
		{"generation inter", r.SurplusGenerationAfterIntra, r.SurplusGenerationAfterInter},
		{"demand inter", r.SurplusDemandAfterIntra, r.SurplusDemandAfterInter},
	} {
		deducted := check.before - check.after
		if check.after < -epsilon {
			return fmt.Errorf("%w: %s %s pool negative: %v", ErrConservation, r.Key(), check.label, check.after)
		}
		if deducted < -epsilon {
			return fmt.Errorf("%w: %s %s pool grew by %v", ErrConservation, r.Key(), check.label, -deducted)
		}
	}

	if r.IntraSettlement < -epsilon || r.InterSettlement < -epsilon {
		return fmt.Errorf("%w: %s negative settlement amount", ErrConservation, r.Key())
	}
	intraDem := (r.SurplusDemandSum - r.MatchedSettledSum) - r.SurplusDemandAfterIntra
	if math.Abs(intraDem-r.IntraSettlement) > epsilon {
		return fmt.Errorf("%w: %s intra_settlement=%v but demand pool moved %v", ErrConservation, r.Key(), r.IntraSettlement, intraDem)
	}
	interDem := r.SurplusDemandAfterIntra - r.SurplusDemandAfterInter
	if math.Abs(interDem-r.InterSettlement) > epsilon {
		return fmt.Errorf("%w: %s inter_settlement=%v but demand pool moved %v", ErrConservation, r.Key(), r.InterSettlement, interDem)
	}
	return nil
}

// verifyGroups re-derives each stage group and checks that the two
// sides settled the same amount and that the match was maximal.
func verifyGroups(records []SettlementRecord, groupKey func(*SettlementRecord) string, access stageAccess, epsilon float64) error {
	groups := make(map[string][]int)
	for i := range records {
		groups[groupKey(&records[i])] = append(groups[groupKey(&records[i])], i)
	}
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var totalGen, totalDem, dedGen, dedDem float64
		for _, i := range groups[key] {
			rec := &records[i]
			leftGen := access.leftGen(rec)
			leftDem := access.leftDem(rec)
			totalGen += leftGen
			totalDem += leftDem
			dedGen += leftGen - access.afterGen(rec)
			dedDem += leftDem - access.afterDem(rec)
		}
		if math.Abs(dedGen-dedDem) > epsilon {
			return fmt.Errorf("%w: group %s settled generation=%v demand=%v", ErrConservation, key, dedGen, dedDem)
		}
		wantStage := math.Min(totalGen, totalDem)
		if wantStage < 0 {
			wantStage = 0
		}
		if math.Abs(dedDem-wantStage) > epsilon {
			return fmt.Errorf("%w: group %s settled %v want %v", ErrConservation, key, dedDem, wantStage)
		}
	}
	return nil
}
