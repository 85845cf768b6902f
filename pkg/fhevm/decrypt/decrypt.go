package decrypt

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/chainsafe/fhevm-session/internal/metrics"
	apperrors "github.com/chainsafe/fhevm-session/pkg/app/errors"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/handle"
	"github.com/chainsafe/fhevm-session/pkg/fhevm/sdk"
)

// Decrypt decrypts reqs under sig. Zero handles are never sent to the
// instance and decrypt to 0; when every handle is zero the instance is not
// called at all. Every non-zero request must name a contract sig covers.
func (m *Manager) Decrypt(ctx context.Context, inst sdk.Instance, sig *Signature, reqs []sdk.HandleContractPair) (map[handle.Handle]*big.Int, error) {
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	out := make(map[handle.Handle]*big.Int, len(reqs))
	batch := make([]sdk.HandleContractPair, 0, len(reqs))
	seen := make(map[handle.Handle]struct{}, len(reqs))
	// Coverage is checked on every request, including repeats of a handle
	// that are not sent again.
	referenced := make([]sdk.HandleContractPair, 0, len(reqs))

	for _, r := range reqs {
		if r.Handle.IsZero() {
			out[r.Handle] = new(big.Int)
			metrics.UserDecryptions.WithLabelValues("zero").Inc()
			continue
		}
		referenced = append(referenced, r)
		if _, dup := seen[r.Handle]; dup {
			continue
		}
		seen[r.Handle] = struct{}{}
		batch = append(batch, r)
	}
	if len(batch) == 0 {
		return out, nil
	}

	if inst == nil {
		return nil, apperrors.BadRequestError(nil, "instance is required")
	}
	if sig == nil {
		return nil, apperrors.SignatureError(nil, "decryption signature is required")
	}
	if !sig.ValidAt(m.now()) {
		return nil, apperrors.SignatureError(nil, "decryption signature has expired")
	}
	for _, r := range referenced {
		if !sig.Covers(r.Contract) {
			return nil, apperrors.SignatureError(nil,
				fmt.Sprintf("contract %s is not covered by the decryption signature", r.Contract.Hex()))
		}
	}

	values, err := inst.UserDecrypt(ctx, batch, sig.Authorization())
	if err != nil {
		return nil, abortOr(ctx, apperrors.NetworkError(err, "user decryption failed"))
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	for _, r := range batch {
		v, ok := values[r.Handle]
		if !ok || v == nil {
			return nil, apperrors.NetworkError(nil, fmt.Sprintf("no clear value returned for handle %s", r.Handle))
		}
		out[r.Handle] = v
	}
	metrics.UserDecryptions.WithLabelValues("decrypted").Add(float64(len(batch)))
	m.logger.Debug("decrypted handles", zap.Int("handles", len(batch)), zap.Int("requested", len(reqs)))
	return out, nil
}
