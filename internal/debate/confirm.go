package debate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/alienxp03/botdebate/internal/bot"
	"github.com/alienxp03/botdebate/internal/core"
	"github.com/alienxp03/botdebate/internal/heuristics"
)

// AgreementChecker decides whether the latest reply agrees with the one
// before it.
type AgreementChecker interface {
	Agree(ctx context.Context, topic, current, previous string) bool
}

type detectorChecker struct {
	detector heuristics.AgreementDetector
}

// DetectorChecker runs a plain AgreementDetector.
func DetectorChecker(d heuristics.AgreementDetector) AgreementChecker {
	return detectorChecker{detector: d}
}

func (c detectorChecker) Agree(_ context.Context, _, current, previous string) bool {
	return c.detector.CheckAgreement(current, previous)
}

const confirmPrompt = `You are reviewing a debate on: "%s"

Latest exchange:
%s

Have both participants clearly reached agreement on the main point?

Answer with only YES or NO.`

// ConfirmingChecker asks a judge bot to confirm every agreement the
// lexical detector finds. A failed judge call keeps the lexical answer.
type ConfirmingChecker struct {
	Detector  heuristics.AgreementDetector
	Judge     bot.Profile
	Completer Completer
	Logger    *zap.Logger
}

// Agree implements AgreementChecker.
func (c *ConfirmingChecker) Agree(ctx context.Context, topic, current, previous string) bool {
	if !c.Detector.CheckAgreement(current, previous) {
		return false
	}

	exchange := fmt.Sprintf("A: %s\n\nB: %s", previous, current)
	msgs := []core.Message{
		{Role: core.RoleUser, Content: fmt.Sprintf(confirmPrompt, topic, exchange)},
	}
	answer, err := c.Completer.Complete(ctx, c.Judge, msgs)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("agreement confirmation failed, using lexical result",
				zap.String("judge", c.Judge.Name()), zap.Error(err))
		}
		return true
	}
	return isAffirmative(answer)
}

func isAffirmative(answer string) bool {
	a := heuristics.Normalize(answer)
	return strings.HasPrefix(a, "yes") || strings.HasPrefix(a, "да")
}
