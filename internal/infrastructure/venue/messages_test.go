package venue

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitbot/godigit/internal/domain"
)

func TestBoolishUnmarshal(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`{"is_sold": 1}`, true},
		{`{"is_sold": 0}`, false},
		{`{"is_sold": true}`, true},
		{`{"is_sold": false}`, false},
	}
	for _, tc := range cases {
		var m contractMsg
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &m))
		assert.Equal(t, tc.want, bool(m.IsSold), "raw=%s", tc.raw)
	}
}

// 金额必须走字符串转换，不经过 float64
func TestMoneyFromNumberExact(t *testing.T) {
	m := moneyFromNumber(json.Number("10.10"))
	assert.True(t, m.Equal(domain.MustMoney("10.10")))

	// float64 表示不了的累加基数也必须精确
	m = moneyFromNumber(json.Number("0.1"))
	sum := domain.Zero
	for i := 0; i < 10; i++ {
		sum = sum.Add(m)
	}
	assert.Equal(t, "1.00", sum.String())

	assert.True(t, moneyFromNumber(json.Number("not-a-number")).IsZero())
}

// formatQuote 保证末位数字是 pip 精度的那一位：
// 8453.2 在 pip=2 下是 "8453.20"，末位数字 0 而不是 2
func TestFormatQuotePadsToPipSize(t *testing.T) {
	cases := []struct {
		quote   string
		pipSize int32
		want    string
		digit   int
	}{
		{"8453.2", 2, "8453.20", 0},
		{"8453.21", 2, "8453.21", 1},
		{"100", 3, "100.000", 0},
		{"0.9999", 4, "0.9999", 9},
		{"8453.21", 0, "8453.21", 1}, // pip 未知时保持原样
	}
	for _, tc := range cases {
		got := formatQuote(json.Number(tc.quote), tc.pipSize)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.digit, domain.LastDigitOf(got))
	}
}

func TestEnvelopeContractUpdate(t *testing.T) {
	raw := `{
		"msg_type": "proposal_open_contract",
		"proposal_open_contract": {
			"contract_id": "ct-42",
			"is_sold": 1,
			"profit": "0.95",
			"sell_price": "1.95",
			"account_balance": "101.95"
		}
	}`
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var env envelope
	require.NoError(t, dec.Decode(&env))

	require.NotNil(t, env.ProposalOpenContract)
	u := contractUpdateFromMsg(env.ProposalOpenContract)
	assert.Equal(t, "ct-42", u.ContractID)
	assert.True(t, u.IsSold)
	assert.Equal(t, "0.95", u.Profit.String())
	assert.Equal(t, "1.95", u.SellPrice.String())
	require.NotNil(t, u.AccountBalance)
	assert.Equal(t, "101.95", u.AccountBalance.String())
}

func TestEnvelopeErrorRetryability(t *testing.T) {
	raw := `{"msg_type":"authorize","error":{"code":"InvalidCredential","message":"bad token"}}`
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	require.NotNil(t, env.Error)
	assert.False(t, env.Error.Retryable())
	assert.True(t, IsTerminalAuthError(env.Error))

	raw = `{"msg_type":"authorize","error":{"code":"RateLimit","message":"slow down"}}`
	env = envelope{}
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.True(t, env.Error.Retryable())
	assert.False(t, IsTerminalAuthError(env.Error))
}
