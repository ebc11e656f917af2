package corerpc

import "testing"

func TestMempoolEntryFeeSatoshis(t *testing.T) {
	e := mempoolEntry{Weight: 400}
	e.Fees.Base = 0.00001234
	if got, want := e.feeSatoshis(), uint64(1234); got != want {
		t.Errorf("feeSatoshis() = %d, want %d", got, want)
	}
}

func TestMempoolEntryFeeSatoshisRounds(t *testing.T) {
	e := mempoolEntry{Weight: 400}
	e.Fees.Base = 0.000000005 // 0.5 satoshis, should round to nearest
	if got, want := e.feeSatoshis(), uint64(1); got != want {
		t.Errorf("feeSatoshis() = %d, want %d", got, want)
	}
}
