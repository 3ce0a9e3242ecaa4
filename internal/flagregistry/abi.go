package flagregistry

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// contractABI is a minimal hand-written binding for the flag contract
// described in spec §6 — no abigen-generated file ships in the pack, so the
// ABI is embedded directly and calls go through bind.BoundContract, the
// same layer abigen output is itself built on.
const contractABI = `[
  {"type":"function","name":"flagWallet","stateMutability":"nonpayable",
   "inputs":[{"name":"wallet","type":"address"},{"name":"score","type":"uint256"},{"name":"reason","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"unflagWallet","stateMutability":"nonpayable",
   "inputs":[{"name":"wallet","type":"address"}],"outputs":[]},
  {"type":"function","name":"updateRiskLevel","stateMutability":"nonpayable",
   "inputs":[{"name":"wallet","type":"address"},{"name":"level","type":"uint8"}],"outputs":[]},
  {"type":"function","name":"isWalletFlagged","stateMutability":"view",
   "inputs":[{"name":"wallet","type":"address"}],"outputs":[{"type":"bool"}]},
  {"type":"function","name":"getWalletFlag","stateMutability":"view",
   "inputs":[{"name":"wallet","type":"address"}],
   "outputs":[
     {"name":"isFlagged","type":"bool"},
     {"name":"riskLevel","type":"uint8"},
     {"name":"score","type":"uint256"},
     {"name":"flaggedAt","type":"uint256"},
     {"name":"expiresAt","type":"uint256"},
     {"name":"flagger","type":"address"},
     {"name":"reason","type":"string"}
   ]},
  {"type":"function","name":"getAllFlaggedWallets","stateMutability":"view",
   "inputs":[],"outputs":[{"type":"address[]"}]},
  {"type":"function","name":"getActiveFlaggedCount","stateMutability":"view",
   "inputs":[],"outputs":[{"type":"uint256"}]},
  {"type":"event","name":"WalletFlagged","anonymous":false,
   "inputs":[{"name":"wallet","type":"address","indexed":true},{"name":"riskLevel","type":"uint8","indexed":false},{"name":"score","type":"uint256","indexed":false}]},
  {"type":"event","name":"WalletUnflagged","anonymous":false,
   "inputs":[{"name":"wallet","type":"address","indexed":true}]},
  {"type":"event","name":"RiskLevelUpdated","anonymous":false,
   "inputs":[{"name":"wallet","type":"address","indexed":true},{"name":"level","type":"uint8","indexed":false}]}
]`

func parsedABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(contractABI))
}
