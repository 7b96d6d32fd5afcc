package verifier

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/makehaven/paypal-inventory-listener/internal/config"
	"github.com/makehaven/paypal-inventory-listener/internal/ipn/domain"
	"github.com/makehaven/paypal-inventory-listener/internal/observability/metrics"
	"github.com/makehaven/paypal-inventory-listener/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	verifyCommand = "cmd=_notify-validate"
	successToken  = "VERIFIED"

	connectTimeout = 5 * time.Second
	totalTimeout   = 15 * time.Second

	maxResponseBytes = 1 << 10
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// PayPalVerifier echoes the raw notification body back to PayPal and accepts
// it only on an exact VERIFIED response.
type PayPalVerifier struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

func Provide(p Params) domain.Verifier {
	return New(p.Cfg.PayPalVerifyURL, p.Log)
}

func New(url string, log *zap.Logger) *PayPalVerifier {
	dialer := &net.Dialer{Timeout: connectTimeout}
	client := &http.Client{
		Timeout: totalTimeout,
		Transport: &http.Transport{
			DialContext:       dialer.DialContext,
			DisableKeepAlives: true,
		},
	}
	return &PayPalVerifier{
		url:    url,
		client: tracing.WrapHTTPClient(client),
		log:    log.Named("ipn.verifier"),
	}
}

func (v *PayPalVerifier) Verify(ctx context.Context, rawBody string) error {
	body := verifyCommand + "&" + rawBody
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerificationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Connection", "close")
	req.Close = true

	start := time.Now()
	resp, err := v.client.Do(req)
	metrics.Listener().VerificationObserved(time.Since(start))
	if err != nil {
		v.log.Error("verification request failed", zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrVerificationUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		v.log.Error("verification response unreadable", zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrVerificationUnavailable, err)
	}

	verdict := strings.TrimSpace(string(raw))
	if verdict != successToken {
		v.log.Warn("verification rejected", zap.String("response", verdict))
		return domain.ErrVerificationRejected
	}
	return nil
}
