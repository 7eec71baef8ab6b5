package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierBusiness   Tier = "business"
	TierEnterprise Tier = "enterprise"
)

type TierPlan struct {
	Tier          Tier
	Name          string
	MaxTenants    int
	MonthlyPrice  decimal.Decimal
	LifetimePrice decimal.Decimal
}

// Free reports whether the plan activates without a mobile payment.
func (p TierPlan) Free() bool {
	return p.MonthlyPrice.IsZero()
}

var plans = map[Tier]TierPlan{
	TierFree:       {Tier: TierFree, Name: "Free", MaxTenants: 5, MonthlyPrice: decimal.Zero, LifetimePrice: decimal.Zero},
	TierStarter:    {Tier: TierStarter, Name: "Starter", MaxTenants: 15, MonthlyPrice: decimal.NewFromInt(300), LifetimePrice: decimal.NewFromInt(10000)},
	TierBasic:      {Tier: TierBasic, Name: "Basic", MaxTenants: 50, MonthlyPrice: decimal.NewFromInt(600), LifetimePrice: decimal.NewFromInt(25000)},
	TierPro:        {Tier: TierPro, Name: "Pro", MaxTenants: 100, MonthlyPrice: decimal.NewFromInt(1000), LifetimePrice: decimal.NewFromInt(55000)},
	TierBusiness:   {Tier: TierBusiness, Name: "Business", MaxTenants: 250, MonthlyPrice: decimal.NewFromInt(2500), LifetimePrice: decimal.NewFromInt(90000)},
	TierEnterprise: {Tier: TierEnterprise, Name: "Enterprise", MaxTenants: 1000, MonthlyPrice: decimal.NewFromInt(10000), LifetimePrice: decimal.NewFromInt(250000)},
}

func LookupTier(t Tier) (TierPlan, error) {
	p, ok := plans[t]
	if !ok {
		return TierPlan{}, fmt.Errorf("unknown subscription tier %q", t)
	}
	return p, nil
}

func Tiers() []Tier {
	return []Tier{TierFree, TierStarter, TierBasic, TierPro, TierBusiness, TierEnterprise}
}
