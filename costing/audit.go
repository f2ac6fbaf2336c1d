package costing

import (
	"github.com/shopspring/decimal"
)

// Stage names one step of the waterfall.
type Stage string

const (
	StageLandedCost      Stage = "L0_landed_cost"
	StageJointCostPool   Stage = "L1_joint_cost_pool"
	StageByProductCredit Stage = "L2_by_product_credit"
	StageSVASO           Stage = "L3_svaso"
	StageMiniSVASO       Stage = "L4_mini_svaso"
	StageProcessChain    Stage = "L4_process_chain"
	StageABC             Stage = "L5_abc"
	StageSKUCost         Stage = "L6_sku_cost"
	StageNRV             Stage = "L7_nrv"
)

// AuditInput is one named operand of a formula.
type AuditInput struct {
	Name  string
	Value decimal.Decimal
}

// AuditEntry records how one number was produced. Values are kept at full
// precision so the result can be recomputed from the entry alone.
type AuditEntry struct {
	Stage   Stage
	Subject string // part, sub-cut, SKU or route the entry is about; empty for batch-level
	Inputs  []AuditInput
	Formula string
	Result  decimal.Decimal
}

// Input returns the named operand, if present.
func (a AuditEntry) Input(name string) (decimal.Decimal, bool) {
	for _, in := range a.Inputs {
		if in.Name == name {
			return in.Value, true
		}
	}
	return decimal.Zero, false
}

func audit(stage Stage, subject, formula string, result decimal.Decimal, kv ...any) AuditEntry {
	entry := AuditEntry{Stage: stage, Subject: subject, Formula: formula, Result: result}
	for i := 0; i+1 < len(kv); i += 2 {
		entry.Inputs = append(entry.Inputs, AuditInput{Name: kv[i].(string), Value: kv[i+1].(decimal.Decimal)})
	}
	return entry
}

// AuditTrail collects entries in pipeline order.
type AuditTrail []AuditEntry

// ForStage returns the entries for one stage.
func (t AuditTrail) ForStage(stage Stage) []AuditEntry {
	var out []AuditEntry
	for _, e := range t {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the first entry for the stage/subject pair.
func (t AuditTrail) Find(stage Stage, subject string) (AuditEntry, bool) {
	for _, e := range t {
		if e.Stage == stage && e.Subject == subject {
			return e, true
		}
	}
	return AuditEntry{}, false
}
