// Package summary turns numeric analysis results into short plain-English
// narratives with an OpenAI-compatible chat model.
package summary

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"stockadvisor/internal/portfolio"
	"stockadvisor/internal/recommend"
)

const systemPrompt = `You are a concise financial analyst assistant.
You summarize stock recommendation results in plain English for retail investors.
Keep summaries to 3-4 sentences. Be specific, use the numbers provided.
Never give financial advice - frame everything as analytical observations.
Do not use bullet points. Write in flowing prose.`

// Summarizer narrates analysis results. The zero value is unusable; build
// one with New.
type Summarizer struct {
	cli   oa.Client
	model string
}

func New(apiKey, model string) *Summarizer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Summarizer{cli: oa.NewClient(option.WithAPIKey(apiKey)), model: model}
}

// Similar narrates a similarity lookup.
func (s *Summarizer) Similar(ctx context.Context, ticker string, hits []recommend.SimilarStock) (string, error) {
	return s.complete(ctx, similarPrompt(ticker, hits))
}

// Gaps narrates a diversification-gap analysis.
func (s *Summarizer) Gaps(ctx context.Context, held []string, picks []recommend.GapPick) (string, error) {
	return s.complete(ctx, gapsPrompt(held, picks))
}

// Optimize narrates an optimization result.
func (s *Summarizer) Optimize(ctx context.Context, tickers []string, tier portfolio.RiskTier, res *portfolio.Result) (string, error) {
	return s.complete(ctx, optimizePrompt(tickers, tier, res))
}

func similarPrompt(ticker string, hits []recommend.SimilarStock) string {
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "- %s (%s): similarity %.1f%%, beta %.2f, 6m momentum %.1f%%, volatility %.1f%%\n",
			h.Ticker, h.Sector, h.Similarity*100, h.Beta, h.Momentum6M*100, h.Volatility*100)
	}
	return fmt.Sprintf(`The user searched for stocks similar to %s.
Here are the top similar stocks found:

%s
Summarize what these results tell us about %s and its peers.
Mention sector concentration, risk profile (beta/volatility), and momentum trends.`, ticker, b.String(), ticker)
}

func gapsPrompt(held []string, picks []recommend.GapPick) string {
	var b strings.Builder
	for _, p := range picks {
		fmt.Fprintf(&b, "- %s (%s): correlation %.3f\n", p.Ticker, p.Sector, p.Correlation)
	}
	return fmt.Sprintf(`The user has a portfolio of: %s.
The gap analysis identified these low-correlation stocks that could improve diversification:

%s
Summarize what sectors or risk factors are missing from the current portfolio,
and why the recommended stocks would improve diversification.
Mention the most compelling picks specifically.`, strings.Join(held, ", "), b.String())
}

func optimizePrompt(tickers []string, tier portfolio.RiskTier, res *portfolio.Result) string {
	var b strings.Builder
	for _, tk := range sortedWeightTickers(res.Weights) {
		fmt.Fprintf(&b, "- %s: %.1f%%\n", tk, res.Weights[tk]*100)
	}
	return fmt.Sprintf(`The user optimized a %s risk portfolio of: %s.
Here are the optimized weights:

%s
Portfolio metrics:
- Expected Annual Return: %.1f%%
- Annual Volatility: %.1f%%
- Sharpe Ratio: %.2f

Summarize what the optimizer decided, why certain stocks got higher allocations,
and what the Sharpe ratio and return/volatility tradeoff means for a %s investor.`,
		tier, strings.Join(tickers, ", "), b.String(),
		res.ExpectedReturn*100, res.Volatility*100, res.SharpeRatio, tier)
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: s.model,
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(systemPrompt),
			oa.UserMessage(prompt),
		},
	})
	if err != nil {
		log.Printf("summary: completion failed: %v", err)
		return "", fmt.Errorf("summary completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summary completion: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// sortedWeightTickers orders tickers by allocation, largest first, ties
// alphabetical, so prompts are stable across runs.
func sortedWeightTickers(weights map[string]float64) []string {
	out := make([]string, 0, len(weights))
	for tk := range weights {
		out = append(out, tk)
	}
	sort.Slice(out, func(i, j int) bool {
		if weights[out[i]] != weights[out[j]] {
			return weights[out[i]] > weights[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
