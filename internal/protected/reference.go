package protected

type domainTable struct {
	market   Market
	category Category
	domains  []string
}

type patternRow struct {
	market   Market
	category Category
	pattern  string
}

var builtinDomains = []domainTable{
	// USA
	{MarketUSA, CategoryInvestment, []string{
		"schwab.com", "charlesschwab.com", "fidelity.com", "vanguard.com",
		"etrade.com", "tdameritrade.com", "robinhood.com", "interactivebrokers.com",
		"merrilledge.com", "ally.com", "webull.com",
		"coinbase.com", "kraken.com", "binance.us", "gemini.com",
		"nasdaq.com", "nyse.com",
	}},
	{MarketUSA, CategoryBanking, []string{
		"chase.com", "bankofamerica.com", "wellsfargo.com", "citi.com", "citibank.com",
		"usbank.com", "pnc.com", "capitalone.com", "tdbank.com",
		"goldmansachs.com", "morganstanley.com",
		"paypal.com", "stripe.com", "wise.com", "revolut.com",
	}},
	{MarketUSA, CategoryGovernment, []string{
		"irs.gov", "ssa.gov", "state.gov", "dhs.gov", "uscis.gov", "usps.com",
	}},
	{MarketUSA, CategoryHealthcare, []string{
		"unitedhealthcare.com", "uhc.com", "aetna.com", "cigna.com", "anthem.com",
		"kaiserpermanente.org", "bcbs.com",
	}},
	{MarketUSA, CategoryUtility, []string{
		"att.com", "verizon.com", "t-mobile.com", "xfinity.com", "comcast.net",
		"pge.com", "coned.com", "duke-energy.com",
	}},
	{MarketUSA, CategoryEducation, []string{
		"collegeboard.org", "studentaid.gov", "coursera.org",
	}},

	// India
	{MarketIndia, CategoryInvestment, []string{
		"zerodha.com", "zerodha.net", "kite.trade", "groww.in", "groww.com",
		"upstox.com", "icicidirect.com", "icicisecurities.com", "5paisa.com",
		"angelone.in", "kotaksecurities.com", "hdfcsec.com", "sharekhan.com",
		"motilaloswal.com", "sbimf.com", "axismf.com", "hdfcfund.com",
		"icicipruamc.com", "ppfas.com", "kfintech.com", "camsonline.com",
		"kuvera.in", "paytmmoney.com", "nseindia.com", "bseindia.com",
	}},
	{MarketIndia, CategoryBanking, []string{
		"sbi.co.in", "onlinesbi.sbi", "hdfcbank.com", "icicibank.com", "axisbank.com",
		"kotak.com", "pnbindia.in", "bankofbaroda.in", "canarabank.com",
		"idfcfirstbank.com", "indusind.com", "yesbank.in",
		"paytm.com", "phonepe.com", "razorpay.com", "amazonpay.in", "mobikwik.com",
	}},
	{MarketIndia, CategoryGovernment, []string{
		"incometax.gov.in", "incometaxindia.gov.in", "uidai.gov.in", "epfindia.gov.in",
		"gst.gov.in", "rbi.org.in", "sebi.gov.in", "npci.org.in", "nsdl.co.in",
		"cdslindia.com", "passportindia.gov.in", "digilocker.gov.in",
	}},
	{MarketIndia, CategoryHealthcare, []string{
		"licindia.in", "apollohospitals.com", "fortishealthcare.com", "icicilombard.com",
		"hdfcergo.com", "bajajallianz.com", "starhealth.in", "careinsurance.com",
		"maxhealthcare.com", "manipalhospitals.com",
	}},
	{MarketIndia, CategoryUtility, []string{
		"airtel.in", "airtel.com", "myvi.in", "jio.com", "bsnl.co.in",
		"tatapower.com", "adanipower.com", "bsesdelhi.com",
	}},
	{MarketIndia, CategoryEducation, []string{
		"iitb.ac.in", "iitd.ac.in", "iitm.ac.in", "iisc.ac.in", "du.ac.in",
		"bits-pilani.ac.in", "annauniv.edu",
	}},

	// Germany
	{MarketGermany, CategoryInvestment, []string{
		"traderepublic.com", "scalable.capital", "onvista.de", "flatex.de",
		"consorsbank.de", "boerse-frankfurt.de",
	}},
	{MarketGermany, CategoryBanking, []string{
		"deutsche-bank.de", "deutschebank.com", "commerzbank.de", "sparkasse.de",
		"dkb.de", "ing.de", "comdirect.de", "hypovereinsbank.de", "postbank.de",
		"targobank.de", "n26.com", "paypal.de", "paypal.com",
	}},
	{MarketGermany, CategoryGovernment, []string{
		"bundesregierung.de", "bund.de", "finanzamt.de", "elster.de",
		"arbeitsagentur.de", "bzst.de", "zoll.de", "rentenversicherung.de",
	}},
	{MarketGermany, CategoryHealthcare, []string{
		"tk.de", "aok.de", "barmer.de", "dak.de", "knappschaft.de",
		"allianz.de", "ergo.de", "huk24.de", "debeka.de",
	}},
	{MarketGermany, CategoryUtility, []string{
		"telekom.de", "t-online.de", "vodafone.de", "o2.de", "1und1.de",
		"eon.de", "rwe.de", "vattenfall.de", "rundfunkbeitrag.de", "schufa.de",
	}},
	{MarketGermany, CategoryEducation, []string{
		"lmu.de", "tum.de", "kit.edu", "rwth-aachen.de", "fu-berlin.de",
	}},
}

// builtinPatterns are matched against the sender domain in this order
var builtinPatterns = []patternRow{
	{MarketUSA, CategoryGovernment, `\.gov$`},
	{MarketUSA, CategoryGovernment, `\.mil$`},
	{MarketUSA, CategoryEducation, `\.edu$`},

	{MarketIndia, CategoryGovernment, `\.gov\.in$`},
	{MarketIndia, CategoryGovernment, `\.nic\.in$`},
	{MarketIndia, CategoryEducation, `\.ac\.in$`},
	{MarketIndia, CategoryEducation, `(^|\.)(iit|iim|nit)[a-z]{0,3}\.(ac\.in|edu\.in|edu|in)$`},
	{MarketIndia, CategoryInvestment, `(^|[.-])mf[.-]`},
	{MarketIndia, CategoryInvestment, `amc\.`},

	{MarketGermany, CategoryGovernment, `finanzamt`},
	{MarketGermany, CategoryGovernment, `steuer`},
	{MarketGermany, CategoryGovernment, `polizei`},
	{MarketGermany, CategoryGovernment, `\.bund\.de$`},
	{MarketGermany, CategoryBanking, `sparkasse`},
	{MarketGermany, CategoryBanking, `volksbank`},
	{MarketGermany, CategoryHealthcare, `versicherung`},
	{MarketGermany, CategoryHealthcare, `kranken`},
	{MarketGermany, CategoryEducation, `universitaet|hochschule|uni-`},

	{MarketGlobal, CategoryGovernment, `\.gov\.`},
	{MarketGlobal, CategoryGovernment, `police`},
	{MarketGlobal, CategoryEducation, `\.ac\.`},
	{MarketGlobal, CategoryEducation, `university`},
	{MarketGlobal, CategoryBanking, `bank`},
	{MarketGlobal, CategoryInvestment, `securities`},
	{MarketGlobal, CategoryInvestment, `broker`},
	{MarketGlobal, CategoryInvestment, `mutual.*fund`},
	{MarketGlobal, CategoryInvestment, `kfintech|camsonline`},
	{MarketGlobal, CategoryHealthcare, `insurance`},
	{MarketGlobal, CategoryHealthcare, `health`},
}

// DefaultEntries returns the built-in reference data: all exact domains
// followed by all patterns, each in registration order.
func DefaultEntries() []Entry {
	var entries []Entry
	for _, t := range builtinDomains {
		for _, d := range t.domains {
			entries = append(entries, Entry{Market: t.market, Category: t.category, Domain: d})
		}
	}
	for _, p := range builtinPatterns {
		entries = append(entries, Entry{Market: p.market, Category: p.category, Pattern: p.pattern})
	}
	return entries
}
