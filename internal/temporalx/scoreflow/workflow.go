package scoreflow

import (
	"strings"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/workflow"

	"github.com/glyphworks/puzzle-backend/internal/clients"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/auditlog"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/failures"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/policies"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/saga"
)

// Workflow handles one score submission: integrity validation, cheat
// detection, leaderboard write, best-effort cloud-save sync, audit. A cheat
// verdict is a legitimate business outcome and is returned as a value, not an
// error. The leaderboard write is the only compensated step.
func Workflow(ctx workflow.Context, input Input) (*Result, error) {
	wlog := workflow.GetLogger(ctx)

	if strings.TrimSpace(input.PlayerID) == "" || strings.TrimSpace(input.SubmissionID) == "" {
		writeAudit(ctx, wlog, input, auditlog.OutcomeRejected, map[string]any{"reason": "missing playerId or submissionId"})
		return nil, failures.NonRetryable(failures.TypeScoreValidationFailed, "missing playerId or submissionId")
	}

	var validation ValidationResult
	err := workflow.ExecuteActivity(policies.WithValidation(ctx), ActivityValidateScore, ValidateScoreRequest{
		PlayerID:        input.PlayerID,
		ScoreData:       input.ScoreData,
		ClientTimestamp: input.ClientTimestamp,
	}).Get(ctx, &validation)
	if err != nil {
		writeAudit(ctx, wlog, input, auditlog.OutcomeFailed, map[string]any{"step": "validate_score", "error": err.Error()})
		return nil, err
	}
	if !validation.Valid {
		reason := strings.Join(validation.Reasons, "; ")
		wlog.Info("score submission rejected", "player_id", input.PlayerID, "reason", reason)
		writeAudit(ctx, wlog, input, auditlog.OutcomeRejected, map[string]any{"reasons": validation.Reasons})
		return nil, failures.NonRetryable(failures.TypeScoreValidationFailed, "score validation failed: "+reason)
	}

	var cheat clients.CheatDetectionResult
	err = workflow.ExecuteActivity(policies.WithDefault(ctx), ActivityCheatDetection, clients.CheatDetectionRequest{
		PlayerID:      input.PlayerID,
		ScoreData:     input.ScoreData,
		PlayerContext: input.PlayerContext,
	}).Get(ctx, &cheat)
	if err != nil {
		writeAudit(ctx, wlog, input, auditlog.OutcomeFailed, map[string]any{"step": "cheat_detection", "error": err.Error()})
		return nil, err
	}
	if cheat.IsCheater {
		wlog.Info("score submission flagged as cheated",
			"player_id", input.PlayerID, "confidence", cheat.ConfidenceScore, "reason", cheat.Reason)
		writeAudit(ctx, wlog, input, auditlog.OutcomeCheated, map[string]any{
			"reason":          cheat.Reason,
			"confidenceScore": cheat.ConfidenceScore,
		})
		return &Result{
			Accepted: false,
			Outcome:  auditlog.OutcomeCheated,
			Reason:   "submission flagged by cheat detection",
		}, nil
	}

	sg := saga.New()

	var submission clients.SubmitScoreResult
	err = workflow.ExecuteActivity(policies.WithDefault(ctx), ActivitySubmitLeaderboard, clients.SubmitScoreRequest{
		PlayerID:      input.PlayerID,
		Score:         input.ScoreData.Score,
		LevelID:       input.ScoreData.LevelID,
		SubmissionKey: input.SubmissionID,
		Timestamp:     workflow.Now(ctx),
	}).Get(ctx, &submission)
	if err != nil {
		writeAudit(ctx, wlog, input, auditlog.OutcomeFailed, map[string]any{"step": "update_leaderboard", "error": err.Error()})
		return nil, err
	}
	sg.AddCompensation(saga.Compensation{
		Name: "invalidate_leaderboard_entry",
		Run: func(cctx workflow.Context) error {
			return workflow.ExecuteActivity(policies.WithCritical(cctx), ActivityCompensateLeaderboard, clients.InvalidateSubmissionRequest{
				SubmissionID: submission.SubmissionID,
				Reason:       "score workflow rolled back",
			}).Get(cctx, nil)
		},
	})

	cloudSaveSynced := true
	err = workflow.ExecuteActivity(policies.WithBestEffort(ctx), ActivityCloudSaveSync, clients.CloudSaveSyncRequest{
		PlayerID: input.PlayerID,
		SaveData: input.GameplaySessionData,
	}).Get(ctx, nil)
	if err != nil {
		cloudSaveSynced = false
		wlog.Warn("cloud save sync dropped after best-effort retries",
			"player_id", input.PlayerID, "error", err)
	}

	err = auditlog.Write(ctx, clients.AuditEvent{
		EventType:     auditlog.EventScoreSubmission,
		UserID:        input.PlayerID,
		TransactionID: input.SubmissionID,
		Outcome:       auditlog.OutcomeAccepted,
		Details: map[string]any{
			"levelId":                 input.ScoreData.LevelID,
			"score":                   input.ScoreData.Score,
			"leaderboardSubmissionId": submission.SubmissionID,
			"cloudSaveSynced":         cloudSaveSynced,
		},
	})
	if err != nil {
		// Audit is part of the transactional boundary here: without the trail
		// the leaderboard entry must not stand.
		if cerr := sg.Compensate(ctx); cerr != nil {
			wlog.Error("compensation incomplete", "submission_id", input.SubmissionID, "error", cerr)
		}
		return nil, err
	}

	return &Result{
		Accepted:        true,
		Outcome:         auditlog.OutcomeAccepted,
		SubmissionID:    submission.SubmissionID,
		Rank:            submission.Rank,
		CloudSaveSynced: cloudSaveSynced,
	}, nil
}

func writeAudit(ctx workflow.Context, wlog log.Logger, input Input, outcome string, details map[string]any) {
	err := auditlog.Write(ctx, clients.AuditEvent{
		EventType:     auditlog.EventScoreSubmission,
		UserID:        input.PlayerID,
		TransactionID: input.SubmissionID,
		Outcome:       outcome,
		Details:       details,
	})
	if err != nil {
		wlog.Error("audit write failed after critical retries",
			"submission_id", input.SubmissionID, "outcome", outcome, "error", err)
	}
}
