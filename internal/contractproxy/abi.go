package contractproxy

// mixerABI is the LaserGun mixer contract's consumed surface (spec §6):
// the four write methods, the read methods used by operations/recovery,
// and the four events recovery and the scanner filter for.
const mixerABI = `[
{"name":"shield","type":"function","inputs":[
	{"name":"amount","type":"uint256"},
	{"name":"token","type":"address"},
	{"name":"commitment","type":"bytes32"}
],"outputs":[]},
{"name":"unshield","type":"function","inputs":[
	{"name":"secret","type":"bytes32"},
	{"name":"amount","type":"uint256"},
	{"name":"recipient","type":"address"},
	{"name":"newCommitment","type":"bytes32"}
],"outputs":[]},
{"name":"transfer","type":"function","inputs":[
	{"name":"secret","type":"bytes32"},
	{"name":"amount","type":"uint256"},
	{"name":"recipientCommitment","type":"bytes32"},
	{"name":"encryptedSecret","type":"bytes"}
],"outputs":[]},
{"name":"consolidate","type":"function","inputs":[
	{"name":"secrets","type":"bytes32[]"},
	{"name":"newCommitment","type":"bytes32"}
],"outputs":[]},
{"name":"registerPublicKey","type":"function","inputs":[
	{"name":"publicKey","type":"bytes"}
],"outputs":[]},
{"name":"getShieldInfo","type":"function","stateMutability":"view","inputs":[
	{"name":"commitment","type":"bytes32"}
],"outputs":[
	{"name":"exists","type":"bool"},
	{"name":"token","type":"address"},
	{"name":"amount","type":"uint256"},
	{"name":"timestamp","type":"uint256"},
	{"name":"spent","type":"bool"}
]},
{"name":"getShieldBalance","type":"function","stateMutability":"view","inputs":[
	{"name":"secret","type":"bytes32"},
	{"name":"token","type":"address"}
],"outputs":[{"name":"","type":"uint256"}]},
{"name":"isCommitmentActive","type":"function","stateMutability":"view","inputs":[
	{"name":"commitment","type":"bytes32"}
],"outputs":[{"name":"","type":"bool"}]},
{"name":"publicKeys","type":"function","stateMutability":"view","inputs":[
	{"name":"owner","type":"address"}
],"outputs":[{"name":"","type":"bytes"}]},
{"name":"shieldFeePercent","type":"function","stateMutability":"view","inputs":[],
	"outputs":[{"name":"","type":"uint256"}]},
{"name":"unshieldFeePercent","type":"function","stateMutability":"view","inputs":[],
	"outputs":[{"name":"","type":"uint256"}]},
{"name":"transferFeePercent","type":"function","stateMutability":"view","inputs":[],
	"outputs":[{"name":"","type":"uint256"}]},
{"name":"FEE_DENOMINATOR","type":"function","stateMutability":"view","inputs":[],
	"outputs":[{"name":"","type":"uint256"}]},
{"name":"Shielded","type":"event","anonymous":false,"inputs":[
	{"name":"commitment","type":"bytes32","indexed":true},
	{"name":"token","type":"address","indexed":true},
	{"name":"amount","type":"uint256","indexed":false},
	{"name":"fee","type":"uint256","indexed":false}
]},
{"name":"Unshielded","type":"event","anonymous":false,"inputs":[
	{"name":"commitment","type":"bytes32","indexed":true},
	{"name":"token","type":"address","indexed":true},
	{"name":"amount","type":"uint256","indexed":false},
	{"name":"fee","type":"uint256","indexed":false}
]},
{"name":"SecretDelivered","type":"event","anonymous":false,"inputs":[
	{"name":"encryptedSecret","type":"bytes","indexed":false}
]},
{"name":"ShieldConsolidated","type":"event","anonymous":false,"inputs":[
	{"name":"oldCommitments","type":"bytes32[]","indexed":true},
	{"name":"newCommitment","type":"bytes32","indexed":true}
]}
]`

// erc20ABI is the trivial ERC-20 surface the token manager proxies
// (spec §6): balanceOf, allowance, approve, symbol, decimals, name.
const erc20ABI = `[
{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[
	{"name":"owner","type":"address"}
],"outputs":[{"name":"","type":"uint256"}]},
{"name":"allowance","type":"function","stateMutability":"view","inputs":[
	{"name":"owner","type":"address"},
	{"name":"spender","type":"address"}
],"outputs":[{"name":"","type":"uint256"}]},
{"name":"approve","type":"function","inputs":[
	{"name":"spender","type":"address"},
	{"name":"amount","type":"uint256"}
],"outputs":[{"name":"","type":"bool"}]},
{"name":"symbol","type":"function","stateMutability":"view","inputs":[],
	"outputs":[{"name":"","type":"string"}]},
{"name":"decimals","type":"function","stateMutability":"view","inputs":[],
	"outputs":[{"name":"","type":"uint8"}]},
{"name":"name","type":"function","stateMutability":"view","inputs":[],
	"outputs":[{"name":"","type":"string"}]}
]`
