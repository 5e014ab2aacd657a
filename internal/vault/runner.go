package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	xerrors "OpenMint-Vault/internal/errors"
	"OpenMint-Vault/internal/identity"
	"OpenMint-Vault/internal/observability/metrics"
	"OpenMint-Vault/pkg/logger"
)

// Operation 描述操作文件中的一条管理指令。
// Op 采用与通知类型一致的 "组件.动作" 命名。
type Operation struct {
	Op       string `json:"op"`
	Asset    string `json:"asset,omitempty"`
	Caller   string `json:"caller"`
	To       string `json:"to,omitempty"`
	From     string `json:"from,omitempty"`
	Amount   uint64 `json:"amount,omitempty"`
	Quantity uint64 `json:"quantity,omitempty"`
	Value    string `json:"value,omitempty"`
}

// OperationResult 汇总一条指令的执行结果。
type OperationResult struct {
	Op         string `json:"op"`
	Asset      string `json:"asset,omitempty"`
	Code       string `json:"code"`
	Error      string `json:"error,omitempty"`
	FirstID    uint64 `json:"first_id,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// LoadOperations 解析指定路径的 JSON 操作文件。路径为空时返回空批次。
func LoadOperations(path string) ([]Operation, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取操作文件失败: %w", err)
	}

	var ops []Operation
	if err := json.Unmarshal(content, &ops); err != nil {
		return nil, fmt.Errorf("解析操作文件失败: %w", err)
	}
	return ops, nil
}

// Run 依次执行一批管理指令。每条指令独立生效：失败的指令不会回滚
// 之前已提交的指令，结果按输入顺序逐条返回。
func (v *Vault) Run(ctx context.Context, ops []Operation) []OperationResult {
	results := make([]OperationResult, 0, len(ops))
	for _, op := range ops {
		results = append(results, v.runOne(ctx, op))
	}
	return results
}

func (v *Vault) runOne(ctx context.Context, op Operation) OperationResult {
	start := time.Now()
	firstID, err := v.apply(ctx, op)
	duration := time.Since(start)

	component, action := splitOp(op.Op)
	code := metrics.CodeOK
	if err != nil {
		code = string(xerrors.CodeOf(err))
	}
	metrics.ObserveOperation(component, action, code, duration)

	result := OperationResult{
		Op:         op.Op,
		Asset:      op.Asset,
		Code:       code,
		DurationMS: duration.Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
		logger.L().Error("管理指令执行失败",
			slog.String("op", op.Op),
			slog.String("asset", op.Asset),
			slog.String("error_code", code),
			slog.Any("error", err),
		)
		return result
	}

	result.FirstID = firstID
	logger.Audit().Info("管理指令执行成功",
		slog.String("op", op.Op),
		slog.String("asset", op.Asset),
		slog.Int64("duration_ms", result.DurationMS),
	)
	return result
}

// apply 将指令分发到对应组件。registry.mint 返回首个分配的编号，
// 其余指令返回 0。
func (v *Vault) apply(ctx context.Context, op Operation) (uint64, error) {
	caller, err := identity.Parse(op.Caller)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析指令调用方失败")
	}

	switch op.Op {
	case "gate.pause":
		return 0, v.gate.SetPaused(ctx, caller, true)
	case "gate.unpause":
		return 0, v.gate.SetPaused(ctx, caller, false)
	case "authority.transfer_ownership":
		next, err := identity.Parse(op.To)
		if err != nil {
			return 0, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析新任所有者失败")
		}
		return 0, v.guard.TransferOwnership(ctx, caller, next)
	case "ledger.mint":
		instance, err := v.Ledger(op.Asset)
		if err != nil {
			return 0, err
		}
		to, err := identity.Parse(op.To)
		if err != nil {
			return 0, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析接收方失败")
		}
		return 0, instance.Mint(ctx, caller, to, op.Amount)
	case "ledger.burn":
		instance, err := v.Ledger(op.Asset)
		if err != nil {
			return 0, err
		}
		return 0, instance.Burn(ctx, caller, op.Amount)
	case "ledger.burn_from":
		instance, err := v.Ledger(op.Asset)
		if err != nil {
			return 0, err
		}
		from, err := identity.Parse(op.From)
		if err != nil {
			return 0, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析来源持有人失败")
		}
		return 0, instance.BurnFrom(ctx, caller, from, op.Amount)
	case "registry.mint":
		instance, err := v.Registry(op.Asset)
		if err != nil {
			return 0, err
		}
		to, err := identity.Parse(op.To)
		if err != nil {
			return 0, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析接收方失败")
		}
		return instance.Mint(ctx, caller, to, op.Quantity)
	case "registry.set_uri_prefix":
		instance, err := v.Registry(op.Asset)
		if err != nil {
			return 0, err
		}
		return 0, instance.SetURIPrefix(ctx, caller, op.Value)
	case "registry.set_uri_suffix":
		instance, err := v.Registry(op.Asset)
		if err != nil {
			return 0, err
		}
		return 0, instance.SetURISuffix(ctx, caller, op.Value)
	default:
		return 0, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知指令 %s", op.Op))
	}
}

func splitOp(op string) (component, action string) {
	if i := strings.IndexByte(op, '.'); i >= 0 {
		return op[:i], op[i+1:]
	}
	return "vault", op
}
