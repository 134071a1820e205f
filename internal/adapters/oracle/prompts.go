package oracle

const classifierSystem = "You classify email into fixed categories. Respond only with a JSON array."

const verifierSystem = "You review promotional email classifications for safety errors. Respond only with a JSON array."

// classifierPrompt takes the rendered email block
const classifierPrompt = `You are classifying an email written in ENGLISH or GERMAN into 5 categories.

CRITICAL SAFETY RULES:
Before classifying ANY email as PROMOTIONAL, check it against these PROTECTED PATTERNS.
A match means PERSONAL_HUMAN even if the content looks like marketing.

1. FINANCIAL SERVICES (always PERSONAL_HUMAN)
   EN domain terms: bank, securities, invest, trading, brokerage, fund, capital, wealth, finance, insurance, life, prudential, asset, mutual
   EN content: portfolio, mutual fund, stocks, shares, trading account, policy, premium, claim, demat, SIP, NAV, ELSS, dividend, bonds, folio number, client ID
   EN regulatory: risk disclosure, past performance, SEBI, SEC, BaFin, market risk
   DE domain terms: bank, sparkasse, volksbank, finanz, versicherung, kapital, vermoegen, fonds, depot, wertpapier
   DE content: Depot, Wertpapiere, Aktien, Fonds, Anlage, Versicherungspolice, Praemie, Rendite, Dividende, Kapitalanlage
   DE regulatory: Risikohinweis, vergangene Wertentwicklung, Anlageberatung

2. BANKING (always PERSONAL_HUMAN)
   EN: account balance, transaction, transfer, loan, credit card, debit card, statement, IFSC, IBAN, SWIFT, mortgage, OTP, fraud alert, login from new device
   DE: raiffeisenbank, sparda, postbank, Kontostand, Ueberweisung, Girokonto, Kontoauszug, TAN, Dauerauftrag, Lastschrift, Sicherheitswarnung, Betrugswarnung

3. GOVERNMENT (always PERSONAL_HUMAN)
   EN: domains ending .gov, .gov.in, .nic.in, .gov.uk; taxes, benefits, licenses, permits, voting, census, social security
   DE: amt, bundesamt, landesamt, behoerde, verwaltung; Finanzamt, Buergeramt, Steuerbescheid, Sozialversicherung, Aufenthaltstitel, Bescheid, Antrag, Arbeitsagentur, Jobcenter

4. HEALTHCARE (always PERSONAL_HUMAN)
   EN: health, medical, hospital, clinic, pharmacy, doctor, patient, 1mg, pharmeasy, netmeds, apollo; appointment, prescription, lab results, diagnosis, vaccination
   DE: gesundheit, kranken, klinik, arzt, apotheke, medizin, pflege; TK, AOK, Barmer, DAK, IKK, BKK; Termin, Rezept, Krankenkasse, Krankmeldung, Befund

5. UTILITIES (usually PERSONAL_HUMAN)
   EN: energy, power, electric, gas, water, telecom, broadband; bill, meter reading, payment due, service interruption
   DE: stadtwerke, energie, strom, wasser, telekom, vodafone; Rechnung, Zaehlerstand, Abschlag, Vertrag, Tarif

6. EDUCATION AND EMPLOYMENT (usually PERSONAL_HUMAN)
   EN: .edu, .ac.in, universities, schools, direct employment communication
   DE: uni, hochschule, schule, bildung; Studium, Pruefung, Zeugnis, Immatrikulation, Semestergebuehren

7. LEGAL AND TAX (always PERSONAL_HUMAN)
   EN: tax return, assessment, legal notice, court, lawsuit
   DE: Steuerbescheid, Umsatzsteuer, Mahnung, Gerichtsbescheid, Vollstreckung, Rechtsanwalt, Urteil

DECISION LOGIC:
- Any protected match means PERSONAL_HUMAN
- Check BOTH English AND German terms
- If unsure whether the sender is a financial, healthcare or government institution, use PERSONAL_HUMAN
- Use PROMOTIONAL only for pure marketing with no protected connection

Categories:
1. promotional: retail, entertainment, general newsletters, deals, discounts
2. transactional: order confirmations, delivery updates, receipts
3. system_security: login alerts, password resets, verification codes
4. social_platform: social network notifications
5. personal_human: personal or professional correspondence and ALL protected categories

Classify this email:

%s

OUTPUT FORMAT:
- Return ONLY a JSON array with one element, no markdown
- NO line breaks or double quotes inside strings
- Plain ASCII in strings

Example:
[{"idx":0,"cat":"promotional","c":85,"reason":"Retail discount offer, no protected indicators EN+DE","lang":"en"}]

Fields:
- idx: 0
- cat: promotional, transactional, system_security, social_platform or personal_human
- c: confidence 0-100
- reason: short explanation naming the protection that triggered, or why none applies
- lang: language code (en or de)`

// verifierPrompt takes the rendered email block with its first verdict
const verifierPrompt = `Review this PROMOTIONAL classification for CRITICAL safety errors.
This is a mandatory check against protected emails being classified as promotional.

Check the email against these patterns in English and German:
1. FINANCIAL: bank, securities, invest, trading, fund, capital, wealth, finance, insurance, asset, mutual, sparkasse, volksbank, finanz, versicherung, depot, wertpapier; portfolio, stocks, demat, SIP, NAV, dividend, premium, Depot, Aktien, Rendite; risk disclosure, SEBI, SEC, BaFin, Risikohinweis
2. BANKING: account balance, transaction, IBAN, SWIFT, credit card, loan, mortgage, OTP, fraud alert, Kontostand, Ueberweisung, Girokonto, TAN, Lastschrift
3. GOVERNMENT: .gov, .gov.in, .gov.de, .gov.uk, .nic.in, amt, bundesamt, behoerde, verwaltung; taxes, IRS, EPFO, Finanzamt, Steuerbescheid, Arbeitsagentur
4. HEALTHCARE: health, medical, hospital, clinic, pharmacy, doctor, kranken, gesundheit, klinik, arzt, apotheke; TK, AOK, Barmer, DAK, IKK; appointment, prescription, Rezept, Krankenkasse
5. UTILITIES: energy, power, electric, gas, water, telecom, stadtwerke, energie, strom; bill, payment due, Rechnung, Zaehlerstand
6. EDUCATION: .edu, .ac.in, uni, hochschule, schule; enrollment, grades, tuition, Studium, Pruefung

If the domain or content matches ANY pattern, correct the category to personal_human.

Email to review:

%s

OUTPUT FORMAT:
- Return ONLY a JSON array, no markdown
- Reasons at most 50 characters, no line breaks, no double quotes, plain ASCII

Correction example:
[{"idx":0,"cat":"personal_human","c":95,"reason":"Domain has bank pattern","lang":"en"}]

If the classification is correct:
[]`
