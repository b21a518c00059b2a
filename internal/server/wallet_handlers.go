package server

import (
	"errors"

	"aurafeed/internal/models"
	"aurafeed/internal/tipping"
	"aurafeed/internal/wallet"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) walletInfo() fiber.Map {
	info := fiber.Map{
		"connected": false,
		"chain_id":  s.wallet.ChainID(),
	}
	if acct, ok := s.wallet.Account(); ok {
		info["connected"] = true
		info["account"] = acct.Hex()
		info["short"] = models.ShortAddress(acct.Hex())
	}
	return info
}

// GetWallet reports the cached wallet account.
func (s *Server) GetWallet(c *fiber.Ctx) error {
	return c.JSON(s.walletInfo())
}

// ConnectWallet requests account access once; later calls reuse the account.
func (s *Server) ConnectWallet(c *fiber.Ctx) error {
	if _, err := s.wallet.Connect(c.UserContext()); err != nil {
		reason := tipping.Reason(err, true)
		switch {
		case errors.Is(err, wallet.ErrNoProvider):
			return models.Respond(c, models.NewWalletError(models.CodeNoWallet, reason, nil))
		case errors.Is(err, wallet.ErrRejected):
			return models.Respond(c, models.NewWalletError(models.CodeRejected, reason, nil))
		default:
			return models.Respond(c, models.NewWalletError(models.CodeWallet, reason, err))
		}
	}
	return c.JSON(s.walletInfo())
}
