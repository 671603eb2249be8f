// internal/blockchain/solbc/error_analyzer.go
package solbc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain"
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// Analysis is a structured view of a failed simulation or submission.
type Analysis struct {
	Type             string       `json:"type"`
	Code             int          `json:"code,omitempty"`
	Message          string       `json:"message"`
	SimulationFailed bool         `json:"simulation_failed,omitempty"`
	InstructionError interface{}  `json:"instruction_error,omitempty"`
	AnchorError      *AnchorError `json:"anchor_error,omitempty"`
	Logs             []string     `json:"logs,omitempty"`
}

// ErrorAnalyzer provides methods to analyze Solana transaction errors
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// AnalyzeSimulation разбирает неуспешный результат симуляции.
func (ea *ErrorAnalyzer) AnalyzeSimulation(res *blockchain.SimulationResult) Analysis {
	if res == nil {
		return Analysis{Type: "none", Message: "no simulation result"}
	}
	a := Analysis{
		Type:             "simulation_error",
		Message:          fmt.Sprintf("%v", res.Err),
		SimulationFailed: res.Err != nil,
		InstructionError: res.Err,
		Logs:             res.Logs,
	}
	a.AnchorError = ea.findAnchorError(res.Logs)
	return a
}

// AnalyzeRPCError analyzes a jsonrpc.RPCError and extracts detailed information
func (ea *ErrorAnalyzer) AnalyzeRPCError(err error) Analysis {
	if err == nil {
		return Analysis{Type: "none", Message: "No error provided"}
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return Analysis{Type: "generic_error", Message: err.Error()}
	}

	a := Analysis{
		Type:    "rpc_error",
		Code:    rpcErr.Code,
		Message: rpcErr.Message,
	}

	// Preflight failures carry the simulation payload in Data.
	if strings.Contains(rpcErr.Message, "Transaction simulation failed") {
		a.SimulationFailed = true
		if dataMap, ok := rpcErr.Data.(map[string]interface{}); ok {
			if logs, ok := dataMap["logs"].([]interface{}); ok {
				for _, entry := range logs {
					if s, ok := entry.(string); ok {
						a.Logs = append(a.Logs, s)
					}
				}
				a.AnchorError = ea.findAnchorError(a.Logs)
			}
			if ixErr, ok := dataMap["err"]; ok {
				a.InstructionError = ixErr
			}
		}
	}

	return a
}

func (ea *ErrorAnalyzer) findAnchorError(logs []string) *AnchorError {
	for _, line := range logs {
		if !strings.Contains(line, "AnchorError") {
			continue
		}
		anchorErr := parseAnchorErrorLog(line)
		ea.logger.Warn("Anchor error detected",
			zap.Int("code", anchorErr.Code),
			zap.String("name", anchorErr.Name),
			zap.String("message", anchorErr.Msg))
		return &anchorErr
	}
	return nil
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: SlippageToleranceExceeded. Error Number: 6001. Error Message: Slippage tolerance exceeded."
func parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if _, rest, ok := strings.Cut(logStr, "Error Number:"); ok {
		num, _, _ := strings.Cut(rest, ".")
		_, _ = fmt.Sscanf(strings.TrimSpace(num), "%d", &result.Code)
	}
	if _, rest, ok := strings.Cut(logStr, "Error Code:"); ok {
		name, _, _ := strings.Cut(rest, ".")
		result.Name = strings.TrimSpace(name)
	}
	if _, rest, ok := strings.Cut(logStr, "Error Message:"); ok {
		result.Msg = strings.TrimSuffix(strings.TrimSpace(rest), ".")
	}

	return result
}

// Format formats the analysis for logging or display
func (a Analysis) Format() string {
	jsonBytes, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error formatting analysis: %v", err)
	}
	return string(jsonBytes)
}
