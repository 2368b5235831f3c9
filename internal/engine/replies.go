package engine

import "math/rand"

// Localized reply data. Keys are the validated lang codes; env() falls back
// to eng for anything else. Each entry is a list of interchangeable
// variations, each variation a list of messages sent in order.

var lostDropScripts = map[string][][]string{
	"eng": {{
		"Sorry to hear that! Let's sort it out step by step. 🔎",
		"1️⃣ Re-read the drop description carefully.\n2️⃣ Check the photo and the coordinates once more — the spot can be a few meters off.\n3️⃣ Look around the area, under and behind nearby objects.",
		"If you still can't find it, send us a photo or a short video of the exact spot and we'll take it from there. 📸",
	}},
	"lv": {{
		"Žēl dzirdēt! Atrisināsim to soli pa solim. 🔎",
		"1️⃣ Vēlreiz uzmanīgi izlasi dropa aprakstu.\n2️⃣ Pārbaudi foto un koordinātas — vieta var būt dažus metrus nost.\n3️⃣ Apskaties apkārtnē, zem un aiz tuvākajiem objektiem.",
		"Ja joprojām nevari atrast, atsūti mums foto vai īsu video ar precīzo vietu, un mēs turpināsim. 📸",
	}},
	"ru": {{
		"Сожалеем! Давайте разберёмся по шагам. 🔎",
		"1️⃣ Внимательно перечитайте описание клада.\n2️⃣ Ещё раз сверьте фото и координаты — место может быть смещено на пару метров.\n3️⃣ Осмотритесь вокруг, под и за ближайшими объектами.",
		"Если всё ещё не нашли — пришлите фото или короткое видео точного места, и мы продолжим. 📸",
	}},
	"ee": {{
		"Kahju kuulda! Lahendame selle samm-sammult. 🔎",
		"1️⃣ Loe dropi kirjeldus veel kord hoolikalt läbi.\n2️⃣ Kontrolli fotot ja koordinaate — koht võib olla paar meetrit nihkes.\n3️⃣ Vaata ümbruses ringi, lähedal asuvate objektide alt ja tagant.",
		"Kui ikka ei leia, saada meile foto või lühike video täpsest kohast ja tegeleme edasi. 📸",
	}},
}

var voiceScripts = map[string][][]string{
	"eng": {{
		"🎙 We don't listen to voice messages.\n\nPlease write your question as text and we'll get back to you.",
	}},
	"lv": {{
		"🎙 Mēs neklausāmies balss ziņas.\n\nLūdzu, uzraksti savu jautājumu tekstā, un mēs atbildēsim.",
	}},
	"ru": {{
		"🎙 Мы не слушаем голосовые сообщения.\n\nПожалуйста, напишите свой вопрос текстом, и мы ответим.",
	}},
	"ee": {{
		"🎙 Me ei kuula häälsõnumeid.\n\nPalun kirjuta oma küsimus tekstina ja me vastame.",
	}},
}

var paymentGuides = map[string][][]string{
	"eng": {{
		"💳 Paying is simple — see the step-by-step screenshots above.",
		"You can pay by card top-up or with a Narvesen voucher. After the payment is confirmed, the bot sends the drop automatically.",
	}},
	"lv": {{
		"💳 Maksāt ir vienkārši — skati soli-pa-solim ekrānuzņēmumus augstāk.",
		"Vari maksāt ar kartes papildinājumu vai Narvesen vaučeru. Kad maksājums apstiprināts, bots automātiski atsūtīs dropu.",
	}},
	"ru": {{
		"💳 Оплатить просто — смотрите пошаговые скриншоты выше.",
		"Можно оплатить пополнением с карты или ваучером Narvesen. После подтверждения оплаты бот пришлёт клад автоматически.",
	}},
	"ee": {{
		"💳 Maksmine on lihtne — vaata samm-sammult ekraanipilte ülal.",
		"Maksta saab kaardiga või Narveseni vautšeriga. Kui makse on kinnitatud, saadab bot dropi automaatselt.",
	}},
}

var restockReplies = map[string][][]string{
	"eng": {
		{"📦 Thanks for the heads-up! Restocks happen regularly — keep an eye on the bot, new drops appear without announcements."},
		{"📦 Noted! The assortment is refilled all the time, so check the bot again a bit later."},
	},
	"lv": {
		{"📦 Paldies par ziņu! Papildinājumi notiek regulāri — seko botam, jauni dropi parādās bez paziņojumiem."},
		{"📦 Pieņemts! Sortiments tiek papildināts visu laiku, ieskaties botā nedaudz vēlāk."},
	},
	"ru": {
		{"📦 Спасибо за сигнал! Пополнения происходят регулярно — следите за ботом, новые клады появляются без анонсов."},
		{"📦 Принято! Ассортимент пополняется постоянно, загляните в бот чуть позже."},
	},
	"ee": {
		{"📦 Aitäh teate eest! Täiendused toimuvad regulaarselt — jälgi botti, uued dropid ilmuvad ilma teadeteta."},
		{"📦 Kirjas! Valikut täiendatakse pidevalt, vaata botti veidi hiljem uuesti."},
	},
}

var availabilityReplies = map[string][][]string{
	"eng": {{
		"✅ Everything listed in the bot right now is available. If a product is shown, it can be bought.",
	}},
	"lv": {{
		"✅ Viss, kas šobrīd redzams botā, ir pieejams. Ja produkts ir sarakstā, to var nopirkt.",
	}},
	"ru": {{
		"✅ Всё, что сейчас есть в боте, доступно. Если товар отображается — его можно купить.",
	}},
	"ee": {{
		"✅ Kõik, mis praegu botis kirjas, on saadaval. Kui toode on nähtav, saab seda osta.",
	}},
}

var arrivalReplies = map[string][][]string{
	"eng": {{
		"🚚 Prepaid orders are usually delivered within 1–3 days, depending on the city. The bot notifies you the moment your drop is ready.",
	}},
	"lv": {{
		"🚚 Priekšapmaksas pasūtījumi parasti tiek piegādāti 1–3 dienu laikā atkarībā no pilsētas. Bots paziņos, tiklīdz drops būs gatavs.",
	}},
	"ru": {{
		"🚚 Предоплаченные заказы обычно доставляются за 1–3 дня в зависимости от города. Бот сообщит, как только клад будет готов.",
	}},
	"ee": {{
		"🚚 Ettemaksuga tellimused jõuavad tavaliselt kohale 1–3 päevaga olenevalt linnast. Bot annab teada kohe, kui drop on valmis.",
	}},
}

var courierReplies = map[string]string{
	"eng": "We will check in with our couriers and get back to you. 🕵️",
	"lv":  "Mēs sazināsimies ar saviem kurjeriem un atgriezīsimies pie tevis. 🕵️",
	"ru":  "Мы уточним у наших курьеров и вернёмся к вам. 🕵️",
	"ee":  "Uurime oma kulleritelt järele ja anname sulle teada. 🕵️",
}

var lateNightCaveats = map[string]string{
	"eng": "It is very late / very early right now, so the answer may take a while. 🌙",
	"lv":  "Šobrīd ir ļoti vēls / ļoti agrs, tāpēc atbilde var aizņemt kādu laiku. 🌙",
	"ru":  "Сейчас очень поздно / очень рано, поэтому ответ может занять некоторое время. 🌙",
	"ee":  "Praegu on väga hilja / väga vara, seega vastus võib veidi aega võtta. 🌙",
}

// pickScript selects a random variation for the lang, falling back to eng.
func pickScript(scripts map[string][][]string, lang string) []string {
	variants, ok := scripts[lang]
	if !ok || len(variants) == 0 {
		variants = scripts["eng"]
	}
	if len(variants) == 0 {
		return nil
	}
	return variants[rand.Intn(len(variants))]
}

func courierReply(lang string) string {
	if s, ok := courierReplies[lang]; ok {
		return s
	}
	return courierReplies["eng"]
}

func lateNightCaveat(lang string) string {
	if s, ok := lateNightCaveats[lang]; ok {
		return s
	}
	return lateNightCaveats["eng"]
}
