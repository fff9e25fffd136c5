package http

import (
	"context"
	"encoding/hex"
	"io/ioutil"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"moff.io/hedera-dapp/internal/database"
	"moff.io/hedera-dapp/internal/ledger"
	"moff.io/hedera-dapp/internal/wallet"
	"moff.io/hedera-dapp/pkg/common"
	"moff.io/hedera-dapp/pkg/concurrent"
	"moff.io/hedera-dapp/pkg/errors"
	"moff.io/hedera-dapp/pkg/log"
)

const maxWalletBody = 64 << 10

func (s *Server) mountWallet(group *gin.RouterGroup) {
	group.GET("/state", s.walletState)
	group.POST("/connect", s.walletConnect)
	group.GET("/qrcode", s.walletQRCode)
	group.POST("/disconnect", s.walletDisconnect)
	group.GET("/transactions", s.walletTransactions)

	ops := group.Group("", limitInflight(concurrent.NewLimiter(s.walletConcurrency)))
	ops.POST("/transfer/hbar", s.transferHbar)
	ops.POST("/transfer/token", s.transferToken)
	ops.POST("/transfer/nft", s.transferNft)
	ops.POST("/associate", s.associateToken)
	ops.POST("/contract/execute", s.executeContract)
}

func (s *Server) walletState(ctx *gin.Context) {
	body := gin.H{
		"initialized":  s.deps.Sessions.Initialized(),
		"account_id":   "",
		"is_connected": false,
		"wallet":       s.deps.Sessions.WalletInfo(),
	}
	if s.deps.Store != nil {
		snapshot := s.deps.Store.Snapshot()
		body["account_id"] = snapshot.AccountID
		body["is_connected"] = snapshot.IsConnected
	}
	if s.deps.Hashconnect != nil {
		body["hashconnect"] = s.deps.Hashconnect.State()
	}
	ctx.JSON(http.StatusOK, body)
}

// walletConnect opens the connection modal in the background; the pairing
// uri is then available from /wallet/qrcode.
func (s *Server) walletConnect(ctx *gin.Context) {
	go s.deps.Sessions.OpenConnectionModal(context.Background())
	ctx.JSON(http.StatusAccepted, gin.H{"pending": true})
}

func (s *Server) walletQRCode(ctx *gin.Context) {
	if s.deps.Pairing == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "pairing not supported"})
		return
	}
	uri, png, ok := s.deps.Pairing.PairingQRCode()
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no pairing in progress"})
		return
	}
	if ctx.Query("format") == "uri" {
		ctx.JSON(http.StatusOK, gin.H{"uri": uri})
		return
	}
	ctx.Data(http.StatusOK, "image/png", png)
}

func (s *Server) walletDisconnect(ctx *gin.Context) {
	s.deps.Sessions.Disconnect(ctx.Request.Context())
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

type hbarTransferRequest struct {
	To     string  `json:"to" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
}

func (s *Server) transferHbar(ctx *gin.Context) {
	var req hbarTransferRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	to, err := ledger.AccountIDFromString(req.To)
	if err != nil {
		badRequest(ctx, err)
		return
	}
	amount := ledger.HbarFrom(req.Amount)
	if amount.Tinybars() <= 0 {
		badRequest(ctx, errors.New("amount must be positive"))
		return
	}
	id, err := s.wallet.TransferHBAR(ctx.Request.Context(), to, amount)
	s.respondTransaction(ctx, "transfer hbar", id, err)
}

type tokenTransferRequest struct {
	To     string `json:"to" binding:"required"`
	Token  string `json:"token" binding:"required"`
	Amount int64  `json:"amount"`
	Serial int64  `json:"serial"`
}

func (r *tokenTransferRequest) ids() (ledger.AccountID, ledger.TokenID, error) {
	to, err := ledger.AccountIDFromString(r.To)
	if err != nil {
		return ledger.AccountID{}, ledger.TokenID{}, err
	}
	token, err := ledger.TokenIDFromString(r.Token)
	if err != nil {
		return ledger.AccountID{}, ledger.TokenID{}, err
	}
	return to, token, nil
}

func (s *Server) transferToken(ctx *gin.Context) {
	var req tokenTransferRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	to, token, err := req.ids()
	if err != nil {
		badRequest(ctx, err)
		return
	}
	if req.Amount <= 0 {
		badRequest(ctx, errors.New("amount must be positive"))
		return
	}
	id, err := s.wallet.TransferFungibleToken(ctx.Request.Context(), to, token, req.Amount)
	s.respondTransaction(ctx, "transfer token", id, err)
}

func (s *Server) transferNft(ctx *gin.Context) {
	var req tokenTransferRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	to, token, err := req.ids()
	if err != nil {
		badRequest(ctx, err)
		return
	}
	if req.Serial <= 0 {
		badRequest(ctx, errors.New("serial must be positive"))
		return
	}
	id, err := s.wallet.TransferNonFungibleToken(ctx.Request.Context(), to, token, req.Serial)
	s.respondTransaction(ctx, "transfer nft", id, err)
}

type associateRequest struct {
	Token string `json:"token" binding:"required"`
}

func (s *Server) associateToken(ctx *gin.Context) {
	var req associateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	token, err := ledger.TokenIDFromString(req.Token)
	if err != nil {
		badRequest(ctx, err)
		return
	}
	id, err := s.wallet.AssociateToken(ctx.Request.Context(), token)
	s.respondTransaction(ctx, "associate token", id, err)
}

// executeContract accepts
//
//	{"contract":"0.0.5","function":"mint","gas":100000,
//	 "params":[{"type":"uint256","value":"10"},{"type":"address","value":"0x.."}]}
func (s *Server) executeContract(ctx *gin.Context) {
	raw, err := ioutil.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxWalletBody))
	if err != nil || !gjson.ValidBytes(raw) {
		badRequest(ctx, errors.New("invalid request body"))
		return
	}
	body := gjson.ParseBytes(raw)
	contract, err := ledger.ContractIDFromString(body.Get("contract").String())
	if err != nil {
		badRequest(ctx, err)
		return
	}
	function := body.Get("function").String()
	if function == "" {
		badRequest(ctx, errors.New("function is required"))
		return
	}
	params, err := contractParamsFrom(body.Get("params"))
	if err != nil {
		badRequest(ctx, err)
		return
	}
	log.Debugf("execute contract %s %s%s", contract, function, common.Preview(body.Get("params").Raw, 256))
	id, err := s.wallet.ExecuteContractFunction(ctx.Request.Context(), contract, function, params, body.Get("gas").Uint())
	s.respondTransaction(ctx, "execute contract", id, err)
}

func contractParamsFrom(list gjson.Result) (*ledger.ContractFunctionParameters, error) {
	params := ledger.NewContractFunctionParameters()
	if !list.Exists() {
		return params, nil
	}
	if !list.IsArray() {
		return nil, errors.New("params must be an array")
	}
	var err error
	list.ForEach(func(_, p gjson.Result) bool {
		err = addContractParam(params, p.Get("type").String(), p.Get("value"))
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return params, nil
}

func addContractParam(params *ledger.ContractFunctionParameters, solType string, v gjson.Result) error {
	switch solType {
	case "string":
		params.AddString(v.String())
	case "bool":
		params.AddBool(v.Bool())
	case "uint8", "uint32", "uint64", "int64", "uint256", "int256":
		n, err := integerParam(solType, v)
		if err != nil {
			return err
		}
		switch solType {
		case "uint8":
			params.AddUint8(uint8(n.Uint64()))
		case "uint32":
			params.AddUint32(uint32(n.Uint64()))
		case "uint64":
			params.AddUint64(n.Uint64())
		case "int64":
			params.AddInt64(n.Int64())
		case "uint256":
			params.AddUint256(n)
		default:
			params.AddInt256(n)
		}
	case "address":
		// 也接受 0.0.x 形式的账户/代币ID
		if id, err := ledger.AccountIDFromString(v.String()); err == nil {
			params.AddAccountAddress(id)
		} else {
			params.AddAddress(v.String())
		}
	case "address[]":
		var addrs []string
		for _, a := range v.Array() {
			addrs = append(addrs, a.String())
		}
		params.AddAddressArray(addrs)
	case "bytes":
		b, err := hex.DecodeString(strings.TrimPrefix(v.String(), "0x"))
		if err != nil {
			return errors.Wrapf(err, "invalid bytes value %q", v.String())
		}
		params.AddBytes(b)
	case "bytes32":
		b, err := hex.DecodeString(strings.TrimPrefix(v.String(), "0x"))
		if err != nil || len(b) > 32 {
			return errors.Errorf("invalid bytes32 value %q", v.String())
		}
		var word [32]byte
		copy(word[:], b)
		params.AddBytes32(word)
	default:
		return errors.Errorf("unsupported parameter type %q", solType)
	}
	return nil
}

var integerBits = map[string]uint{
	"uint8": 8, "uint32": 32, "uint64": 64, "uint256": 256,
	"int64": 64, "int256": 256,
}

// integerParam parses v (json number or decimal/0x string) and checks it
// fits solType, so narrowing afterwards never truncates.
func integerParam(solType string, v gjson.Result) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(v.String()), 0)
	if !ok {
		return nil, errors.Errorf("invalid %s value %q", solType, v.String())
	}
	bits := integerBits[solType]
	var min, max *big.Int
	if strings.HasPrefix(solType, "uint") {
		min = big.NewInt(0)
		max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bits), big.NewInt(1))
	} else {
		max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bits-1), big.NewInt(1))
		min = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), bits-1))
	}
	if n.Cmp(min) < 0 || n.Cmp(max) > 0 {
		return nil, errors.Errorf("%s value %s out of range", solType, n)
	}
	return n, nil
}

func badRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) respondTransaction(ctx *gin.Context, op string, id *ledger.TransactionID, err error) {
	switch {
	case errors.Is(err, wallet.ErrNoSigner):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		log.Errorc(ctx.Request.Context(), "%v", errors.Wrap(err, op))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case id == nil:
		ctx.JSON(http.StatusOK, gin.H{"transaction_id": nil})
	default:
		ctx.JSON(http.StatusOK, gin.H{"transaction_id": id.String()})
	}
	s.record(ctx.Request.Context(), op, id, err)
}

func (s *Server) record(ctx context.Context, op string, id *ledger.TransactionID, err error) {
	if s.deps.History == nil {
		return
	}
	rec := &database.WalletTransaction{Operation: op, Status: database.TransactionSubmitted}
	switch {
	case err != nil:
		msg := err.Error()
		rec.Status = database.TransactionFailed
		rec.Error = &msg
	case id == nil:
		rec.Status = database.TransactionNoResult
	default:
		txID := id.String()
		rec.TransactionID = &txID
		rec.AccountID = id.AccountID.String()
	}
	if rec.AccountID == "" {
		if signer, ok := s.deps.Sessions.Signer(); ok {
			rec.AccountID = signer.AccountID().String()
		}
	}
	if err := s.deps.History.Record(ctx, rec); err != nil {
		log.Errorc(ctx, "record %s: %v", op, err)
	}
}

const defaultTransactionsLimit = 20

// walletTransactions lists the latest recorded operations of ?account, or
// of the connected account when absent.
func (s *Server) walletTransactions(ctx *gin.Context) {
	if s.deps.History == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "transaction history disabled"})
		return
	}
	account := ctx.Query("account")
	if account == "" && s.deps.Store != nil {
		account = s.deps.Store.Snapshot().AccountID
	}
	if account == "" {
		badRequest(ctx, errors.New("account is required"))
		return
	}
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(defaultTransactionsLimit)))
	if err != nil || limit <= 0 || limit > 100 {
		badRequest(ctx, errors.New("limit must be between 1 and 100"))
		return
	}
	records, err := s.deps.History.SelectLatest(ctx.Request.Context(), account, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account_id": account, "transactions": records})
}
