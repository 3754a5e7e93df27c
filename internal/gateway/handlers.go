package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terminal-bench/walletguard/internal/policy"
)

// Request payloads. Amounts arrive as decimal strings; shopspring decimals
// unmarshal them directly.

type tokenRequest struct {
	WalletID string `json:"wallet_id" binding:"required"`
	Address  string `json:"address" binding:"required"`
}

type createWalletRequest struct {
	Address  string                       `json:"address" binding:"required"`
	Owner    string                       `json:"owner" binding:"required"`
	Timelock uint64                       `json:"timelock"`
	Payees   policy.GlobalPayeeSettings   `json:"payee_settings"`
	Managers policy.GlobalManagerSettings `json:"manager_settings"`
}

type paymentRequest struct {
	Recipient string          `json:"recipient" binding:"required"`
	Asset     string          `json:"asset" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

type payeeRequest struct {
	Address  string               `json:"address" binding:"required"`
	Settings policy.PayeeSettings `json:"settings"`
}

type managerRequest struct {
	Address  string                 `json:"address" binding:"required"`
	Settings policy.ManagerSettings `json:"settings"`
}

type ownershipRequest struct {
	NewOwner string `json:"new_owner" binding:"required"`
}

type whitelistRequest struct {
	Address string `json:"address" binding:"required"`
}

func (g *Gateway) issueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	walletID, ok := parseUUID(c, req.WalletID)
	if !ok {
		return
	}

	token, err := g.auth.IssueToken(c.Request.Context(), walletID, policy.Address(req.Address))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown signer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (g *Gateway) createWallet(c *gin.Context) {
	var req createWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := g.wallets.CreateWallet(c.Request.Context(),
		policy.Address(req.Address), policy.Address(req.Owner),
		req.Timelock, req.Payees, req.Managers)
	if err != nil {
		renderError(c, err)
		return
	}

	// The creating owner is the first signer.
	if err := g.auth.RegisterSigner(c.Request.Context(), snap.ID, policy.Address(req.Owner), policy.RoleOwner); err != nil {
		g.log.Warn().Err(err).Str("wallet_id", snap.ID.String()).Msg("owner signer registration failed")
	}

	c.JSON(http.StatusCreated, snap)
}

func (g *Gateway) getWallet(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	snap, err := g.wallets.Snapshot(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (g *Gateway) authorizePayment(c *gin.Context) {
	g.runPayment(c, false)
}

func (g *Gateway) checkPayment(c *gin.Context) {
	g.runPayment(c, true)
}

func (g *Gateway) runPayment(c *gin.Context, dryRun bool) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, caller := claimsFrom(c)

	run := g.wallets.AuthorizePayment
	if dryRun {
		run = g.wallets.CheckPayment
	}
	result, err := run(c.Request.Context(), id, caller, policy.Address(req.Recipient), policy.Address(req.Asset), req.Amount)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (g *Gateway) addPayee(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	var req payeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.AddPayee(c.Request.Context(), id, caller, policy.Address(req.Address), req.Settings))
}

func (g *Gateway) updatePayee(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	var req payeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.UpdatePayee(c.Request.Context(), id, caller, policy.Address(c.Param("addr")), req.Settings))
}

func (g *Gateway) removePayee(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.RemovePayee(c.Request.Context(), id, caller, policy.Address(c.Param("addr"))))
}

func (g *Gateway) addPendingPayee(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	var req payeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.AddPendingPayee(c.Request.Context(), id, caller, policy.Address(req.Address), req.Settings))
}

func (g *Gateway) confirmPendingPayee(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.ConfirmPendingPayee(c.Request.Context(), id, caller, policy.Address(c.Param("addr"))))
}

func (g *Gateway) cancelPendingPayee(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.CancelPendingPayee(c.Request.Context(), id, caller, policy.Address(c.Param("addr"))))
}

func (g *Gateway) addManager(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	var req managerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, caller := claimsFrom(c)
	if err := g.wallets.AddManager(c.Request.Context(), id, caller, policy.Address(req.Address), req.Settings); err != nil {
		renderError(c, err)
		return
	}
	if err := g.auth.RegisterSigner(c.Request.Context(), id, policy.Address(req.Address), policy.RoleManager); err != nil {
		g.log.Warn().Err(err).Str("wallet_id", id.String()).Msg("manager signer registration failed")
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

func (g *Gateway) updateManager(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	var req managerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.UpdateManager(c.Request.Context(), id, caller, policy.Address(c.Param("addr")), req.Settings))
}

func (g *Gateway) removeManager(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	_, caller := claimsFrom(c)
	addr := policy.Address(c.Param("addr"))
	if err := g.wallets.RemoveManager(c.Request.Context(), id, caller, addr); err != nil {
		renderError(c, err)
		return
	}
	if err := g.auth.RemoveSigner(c.Request.Context(), id, addr); err != nil {
		g.log.Warn().Err(err).Str("wallet_id", id.String()).Msg("manager signer removal failed")
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (g *Gateway) setGlobalManagerSettings(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	var gms policy.GlobalManagerSettings
	if err := c.ShouldBindJSON(&gms); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.SetGlobalManagerSettings(c.Request.Context(), id, caller, gms))
}

func (g *Gateway) setGlobalPayeeSettings(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	var gp policy.GlobalPayeeSettings
	if err := c.ShouldBindJSON(&gp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.SetGlobalPayeeSettings(c.Request.Context(), id, caller, gp))
}

func (g *Gateway) transferOwnership(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	var req ownershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, caller := claimsFrom(c)
	newOwner := policy.Address(req.NewOwner)
	if err := g.wallets.TransferOwnership(c.Request.Context(), id, caller, newOwner); err != nil {
		renderError(c, err)
		return
	}
	if err := g.auth.RegisterSigner(c.Request.Context(), id, newOwner, policy.RoleOwner); err != nil {
		g.log.Warn().Err(err).Str("wallet_id", id.String()).Msg("new owner signer registration failed")
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (g *Gateway) addPendingWhitelist(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	var req whitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.AddPendingWhitelistAddr(c.Request.Context(), id, caller, policy.Address(req.Address)))
}

func (g *Gateway) confirmWhitelist(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.ConfirmWhitelistAddr(c.Request.Context(), id, caller, policy.Address(c.Param("addr"))))
}

func (g *Gateway) cancelPendingWhitelist(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.CancelPendingWhitelistAddr(c.Request.Context(), id, caller, policy.Address(c.Param("addr"))))
}

func (g *Gateway) removeWhitelist(c *gin.Context) {
	id, ok := walletIDParam(c)
	if !ok {
		return
	}
	_, caller := claimsFrom(c)
	g.renderMutation(c, g.wallets.RemoveWhitelistAddr(c.Request.Context(), id, caller, policy.Address(c.Param("addr"))))
}

func (g *Gateway) renderMutation(c *gin.Context, err error) {
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseUUID(c *gin.Context, s string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet ID"})
		return uuid.Nil, false
	}
	return id, true
}
