package service

import (
	"time"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/models"
	"github.com/threadline/storefront/internal/repository"
)

const (
	sweepBatchLimit = 500
	maxSweepMinutes = 60 * 24 * 30
)

// SweepInput 超时订单清理输入
type SweepInput struct {
	AbandonedMinutes int
	DryRun           bool
	Trigger          string
	RequestID        string
}

// SweepCandidate 待清理订单
type SweepCandidate struct {
	OrderID         uint         `json:"order_id"`
	OrderNo         string       `json:"order_no"`
	RazorpayOrderID string       `json:"razorpay_order_id"`
	PaymentStatus   string       `json:"payment_status"`
	TotalAmount     models.Money `json:"total_amount"`
	ItemCount       int          `json:"item_count"`
	CreatedAt       time.Time    `json:"created_at"`
	AgeMinutes      int          `json:"age_minutes"`
	Outcome         string       `json:"outcome,omitempty"`
}

// SweepResult 清理结果
type SweepResult struct {
	AbandonedMinutes int              `json:"abandoned_minutes"`
	DryRun           bool             `json:"dry_run"`
	Cutoff           time.Time        `json:"cutoff"`
	Found            int              `json:"found"`
	Cancelled        int              `json:"cancelled"`
	Skipped          int              `json:"skipped"`
	Restored         int              `json:"restored"`
	Failed           int              `json:"failed"`
	Candidates       []SweepCandidate `json:"candidates"`
}

// 清理结果中的单笔订单处理结果
const (
	SweepOutcomeCandidate = "candidate"
	SweepOutcomeCancelled = "cancelled"
	SweepOutcomeSkipped   = "skipped"
	SweepOutcomeFailed    = "failed"
)

// SweepStats 待支付订单按时长分桶统计
type SweepStats struct {
	AbandonedMinutes int       `json:"abandoned_minutes"`
	GeneratedAt      time.Time `json:"generated_at"`
	Under30m         int64     `json:"under_30m"`
	From30mTo1h      int64     `json:"30m_to_1h"`
	From1hTo24h      int64     `json:"1h_to_24h"`
	Over24h          int64     `json:"over_24h"`
	Eligible         int64     `json:"eligible"`
	Total            int64     `json:"total"`
}

func (s *PaymentService) normalizeSweepMinutes(minutes int) int {
	if minutes <= 0 {
		return s.abandonedMinutes
	}
	if minutes > maxSweepMinutes {
		return maxSweepMinutes
	}
	return minutes
}

// SweepAbandoned 取消超时未支付的在线支付订单并回补库存
// 仅严格早于阈值的订单入选；dry-run 只返回候选列表
func (s *PaymentService) SweepAbandoned(input SweepInput) (*SweepResult, error) {
	minutes := s.normalizeSweepMinutes(input.AbandonedMinutes)
	now := s.now()
	cutoff := now.Add(-time.Duration(minutes) * time.Minute)
	log := paymentLogger("request_id", input.RequestID, "trigger", input.Trigger)

	orders, err := s.orderRepo.ListAbandoned(repository.AbandonedOrderFilter{
		CreatedBefore: &cutoff,
		Limit:         sweepBatchLimit,
	})
	if err != nil {
		log.Errorw("abandoned_sweep_query_failed", "error", err)
		return nil, err
	}

	result := &SweepResult{
		AbandonedMinutes: minutes,
		DryRun:           input.DryRun,
		Cutoff:           cutoff,
		Found:            len(orders),
		Candidates:       make([]SweepCandidate, 0, len(orders)),
	}
	for i := range orders {
		order := &orders[i]
		candidate := SweepCandidate{
			OrderID:         order.ID,
			OrderNo:         order.OrderNo,
			RazorpayOrderID: order.RazorpayOrderID,
			PaymentStatus:   order.PaymentStatus,
			TotalAmount:     order.TotalAmount,
			ItemCount:       len(order.Items),
			CreatedAt:       order.CreatedAt,
			AgeMinutes:      int(now.Sub(order.CreatedAt) / time.Minute),
			Outcome:         SweepOutcomeCandidate,
		}
		if !input.DryRun {
			candidate.Outcome = s.cancelAbandonedOrder(order, now, input.RequestID, result)
		}
		result.Candidates = append(result.Candidates, candidate)
	}

	log.Infow("abandoned_sweep_finished",
		"abandoned_minutes", minutes,
		"dry_run", input.DryRun,
		"found", result.Found,
		"cancelled", result.Cancelled,
		"skipped", result.Skipped,
		"restored", result.Restored,
		"failed", result.Failed,
	)
	return result, nil
}

// cancelAbandonedOrder 取消单笔订单；只有赢得 CAS 的调用方回补库存
func (s *PaymentService) cancelAbandonedOrder(order *models.Order, now time.Time, requestID string, result *SweepResult) string {
	log := paymentLogger("request_id", requestID, "order_id", order.ID, "order_no", order.OrderNo)
	affected, err := s.orderRepo.CancelAbandoned(order.ID, now)
	if err != nil {
		result.Failed++
		log.Errorw("abandoned_order_cancel_failed", "error", err)
		return SweepOutcomeFailed
	}
	if affected == 0 {
		result.Skipped++
		log.Infow("abandoned_order_cancel_skipped")
		return SweepOutcomeSkipped
	}
	result.Cancelled++

	orderID := order.ID
	_ = s.appendPaymentLog(&models.PaymentLog{
		OrderID:         &orderID,
		RazorpayOrderID: order.RazorpayOrderID,
		EventType:       constants.PaymentEventOrderAbandoned,
		Status:          constants.OrderStatusCancelled,
		Amount:          order.TotalAmount,
		Currency:        order.Currency,
		Verified:        true,
		Source:          constants.PaymentLogSourceSweep,
		RequestID:       requestID,
		Message:         constants.CancelReasonPaymentAbandoned,
	})

	outcome := s.releaser.release(order)
	result.Restored += outcome.Restored
	result.Failed += outcome.Failed
	log.Infow("abandoned_order_cancelled",
		"age_minutes", int(now.Sub(order.CreatedAt)/time.Minute),
		"restored", outcome.Restored,
		"failed", outcome.Failed,
	)
	return SweepOutcomeCancelled
}

// SweepStats 统计待支付在线订单的时长分布
func (s *PaymentService) SweepStats(abandonedMinutes int) (*SweepStats, error) {
	minutes := s.normalizeSweepMinutes(abandonedMinutes)
	now := s.now()
	at := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}
	stats := &SweepStats{AbandonedMinutes: minutes, GeneratedAt: now}

	buckets := []struct {
		after  *time.Time
		before *time.Time
		dest   *int64
	}{
		{after: at(30 * time.Minute), before: nil, dest: &stats.Under30m},
		{after: at(time.Hour), before: at(30 * time.Minute), dest: &stats.From30mTo1h},
		{after: at(24 * time.Hour), before: at(time.Hour), dest: &stats.From1hTo24h},
		{after: nil, before: at(24 * time.Hour), dest: &stats.Over24h},
		{after: nil, before: at(time.Duration(minutes) * time.Minute), dest: &stats.Eligible},
	}
	for _, bucket := range buckets {
		count, err := s.orderRepo.CountAbandonable(bucket.after, bucket.before)
		if err != nil {
			return nil, err
		}
		*bucket.dest = count
	}
	stats.Total = stats.Under30m + stats.From30mTo1h + stats.From1hTo24h + stats.Over24h
	return stats, nil
}
