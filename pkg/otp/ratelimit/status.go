package ratelimit

import (
	"context"

	"github.com/Abraxas-365/otpguard/pkg/otp"
	"golang.org/x/sync/errgroup"
)

// Quota is the usage of one rate-limited category.
type Quota struct {
	Limit     int    `json:"limit"`
	Window    string `json:"window"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}

// Status is a read-only snapshot for an identifier and IP.
type Status struct {
	Generation    Quota `json:"generation"`
	Resend        Quota `json:"resend"`
	IPGlobal      Quota `json:"ip_global"`
	AccountLocked bool  `json:"account_locked"`
}

// Status reads all counters concurrently.
func (l *Limiter) Status(ctx context.Context, identifier, ip string) (Status, error) {
	var (
		gen, resend, ipUsed int64
		locked              bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		gen, err = getInt(gctx, l.store, GenerationKey(identifier))
		return wrapStore(err)
	})
	g.Go(func() (err error) {
		resend, err = getInt(gctx, l.store, ResendKey(identifier))
		return wrapStore(err)
	})
	g.Go(func() (err error) {
		ipUsed, err = getInt(gctx, l.store, IPKey(ip))
		return wrapStore(err)
	})
	g.Go(func() (err error) {
		locked, err = l.IsAccountLocked(gctx, identifier)
		return err
	})
	if err := g.Wait(); err != nil {
		return Status{}, err
	}

	return Status{
		Generation:    quota(l.cfg.GenerationLimit, minutes(l.cfg.GenerationWindow), gen),
		Resend:        quota(l.cfg.ResendLimit, minutes(l.cfg.ResendWindow), resend),
		IPGlobal:      quota(l.cfg.IPGlobalLimit, minutes(l.cfg.IPGlobalWindow), ipUsed),
		AccountLocked: locked,
	}, nil
}

func quota(limit int, window string, used int64) Quota {
	return Quota{Limit: limit, Window: window, Used: int(used), Remaining: remaining(limit, used)}
}

func wrapStore(err error) error {
	if err == nil {
		return nil
	}
	return otp.ErrStore(err)
}
