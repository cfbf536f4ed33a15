package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for PerpShare.
type Metrics struct {
	// --- Margin ledger ---
	Deposits           prometheus.Counter
	Withdrawals        prometheus.Counter
	TradesExecuted     *prometheus.CounterVec
	LiquidationsTotal  *prometheus.CounterVec
	InsuranceFundWad   prometheus.Gauge
	AccountsTotal      prometheus.Gauge
	LedgerStatus       prometheus.Gauge
	SettlementPayouts  prometheus.Counter

	// --- AMM ---
	PoolTrades        *prometheus.CounterVec
	FundingAccruals   prometheus.Counter
	FundingRateWad    prometheus.Gauge
	MarkPriceWad      prometheus.Gauge
	IndexPriceWad     prometheus.Gauge
	PoolSizeLots      prometheus.Gauge
	TradeRejections   *prometheus.CounterVec

	// --- Tokenizer ---
	SharesMinted    prometheus.Counter
	SharesRedeemed  prometheus.Counter
	SharesSettled   prometheus.Counter
	ShareSupplyWad  prometheus.Gauge
	MintFeesPaidWad prometheus.Counter

	// --- Persistence / publish ---
	SnapshotsWritten  prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	EventsPublished   *prometheus.CounterVec
	PublishFailures   prometheus.Counter
}

// NewMetrics registers all metrics on the given registerer.
// Pass prometheus.DefaultRegisterer in production, a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Deposits: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpshare_ledger_deposits_total",
			Help: "Collateral deposits applied to margin accounts",
		}),
		Withdrawals: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpshare_ledger_withdrawals_total",
			Help: "Collateral withdrawals paid out of margin accounts",
		}),
		TradesExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perpshare_ledger_trades_total",
			Help: "Position trades applied, by side",
		}, []string{"side"}),
		LiquidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perpshare_ledger_liquidations_total",
			Help: "Liquidations executed, by kind (partial|full)",
		}, []string{"kind"}),
		InsuranceFundWad: factory.NewGauge(prometheus.GaugeOpts{
			Name: "perpshare_insurance_fund_wad",
			Help: "Insurance fund balance in WAD raw units (float approximation)",
		}),
		AccountsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "perpshare_ledger_accounts",
			Help: "Number of margin accounts ever created",
		}),
		LedgerStatus: factory.NewGauge(prometheus.GaugeOpts{
			Name: "perpshare_ledger_status",
			Help: "Lifecycle status (0=normal, 1=emergency, 2=settled)",
		}),
		SettlementPayouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpshare_ledger_settlement_payouts_total",
			Help: "Settlement withdrawals paid after global settlement",
		}),

		PoolTrades: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perpshare_amm_trades_total",
			Help: "Pool trades executed, by direction (buy|sell)",
		}, []string{"direction"}),
		FundingAccruals: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpshare_amm_funding_accruals_total",
			Help: "Lazy funding accrual ticks applied",
		}),
		FundingRateWad: factory.NewGauge(prometheus.GaugeOpts{
			Name: "perpshare_amm_funding_rate_wad",
			Help: "Current funding rate (WAD, float approximation)",
		}),
		MarkPriceWad: factory.NewGauge(prometheus.GaugeOpts{
			Name: "perpshare_amm_mark_price_wad",
			Help: "Current mark price (WAD, float approximation)",
		}),
		IndexPriceWad: factory.NewGauge(prometheus.GaugeOpts{
			Name: "perpshare_amm_index_price_wad",
			Help: "Last observed index price (WAD, float approximation)",
		}),
		PoolSizeLots: factory.NewGauge(prometheus.GaugeOpts{
			Name: "perpshare_amm_pool_size_lots",
			Help: "Pool position size in lots (float approximation)",
		}),
		TradeRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perpshare_amm_trade_rejections_total",
			Help: "Pool trades rejected, by reason (slippage|expired|stale_index|unsafe)",
		}, []string{"reason"}),

		SharesMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpshare_tokenizer_mints_total",
			Help: "Share mint operations completed",
		}),
		SharesRedeemed: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpshare_tokenizer_redeems_total",
			Help: "Share redeem operations completed",
		}),
		SharesSettled: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpshare_tokenizer_settles_total",
			Help: "Post-settlement share payouts completed",
		}),
		ShareSupplyWad: factory.NewGauge(prometheus.GaugeOpts{
			Name: "perpshare_tokenizer_supply_wad",
			Help: "Outstanding share supply (WAD, float approximation)",
		}),
		MintFeesPaidWad: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpshare_tokenizer_mint_fees_wad_total",
			Help: "Cumulative mint fees routed to the dev beneficiary (float approximation)",
		}),

		SnapshotsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpshare_snapshots_written_total",
			Help: "State snapshots persisted",
		}),
		SnapshotDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "perpshare_snapshot_duration_seconds",
			Help:    "Snapshot serialize+write duration",
			Buckets: prometheus.DefBuckets,
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "perpshare_events_published_total",
			Help: "Domain events published to NATS, by type",
		}, []string{"event_type"}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "perpshare_publish_failures_total",
			Help: "Failed outbound publishes (non-fatal, event dropped)",
		}),
	}
}
