package main

import (
	"time"

	"keerthanaapi/internal/keerthana"
)

func date(year int, month time.Month, day int) *keerthana.Date {
	d := keerthana.NewDate(year, month, day)
	return &d
}

// samples are inserted oldest first so the newest ends up at the top of the
// collection.
var samples = []keerthana.Fields{
	{
		Name: "Jagadananda Karaka", Raga: "Natabhairavi", Tala: "Adi", Composer: "Tyagaraja", Deity: "Rama",
		DateTaught: date(2024, time.January, 15),
		Lyrics:     "Jagadananda karaka jaya janaardana...",
		Meaning:    "O Janardana, you are the creator of universal bliss",
	},
	{
		Name: "Vatapi Ganapatim", Raga: "Hanumatodi", Tala: "Adi", Composer: "Muthuswami Dikshitar", Deity: "Ganesha",
		DateTaught: date(2024, time.February, 10),
		Lyrics:     "Vatapi ganapatim bhaje ham...",
		Meaning:    "I worship Lord Ganesha of Vatapi",
	},
	{
		Name: "Marugelara", Raga: "Jayanthasri", Tala: "Adi", Composer: "Tyagaraja", Deity: "Rama",
		DateTaught: date(2024, time.March, 5),
		Lyrics:     "Marugelara o raghuvara...",
		Meaning:    "O Raghuvara, please do not forget me",
	},
	{
		Name: "Kalahastiisa", Raga: "Huseni", Tala: "Misra Chapu", Composer: "Muthuswami Dikshitar", Deity: "Shiva",
		DateTaught: date(2024, time.March, 20),
		Lyrics:     "Kalahastiisa ninne nera nammitini...",
		Meaning:    "O Lord of Kalahasti, I have complete faith in you",
	},
	{
		Name: "Merusamana", Raga: "Mayamalavagowla", Tala: "Adi", Composer: "Tyagaraja", Deity: "Rama",
		DateTaught: date(2024, time.April, 12),
		Lyrics:     "Merusamana mamata teera ledaya...",
		Meaning:    "Is there no end to this attachment?",
	},
	{
		Name: "Hiranmayeem Lakshmeem", Raga: "Lalitha", Tala: "Misra Chapu", Composer: "Muthuswami Dikshitar", Deity: "Lakshmi",
		DateTaught: date(2024, time.May, 8),
		Lyrics:     "Hiranmayeem lakshmeem hiranya vasaam...",
		Meaning:    "I worship golden Lakshmi who wears golden garments",
	},
	{
		Name: "Mahaganapatim", Raga: "Natabhairavi", Tala: "Adi", Composer: "Muthuswami Dikshitar", Deity: "Ganesha",
		DateTaught: date(2024, time.June, 15),
		Lyrics:     "Mahaganapatim manasa smarami...",
		Meaning:    "I remember the great Ganapati in my mind",
	},
	{
		Name: "Krishna Nee Begane Baro", Raga: "Yamuna Kalyani", Tala: "Khanda Chapu", Composer: "Vyasatirtha", Deity: "Krishna",
		DateTaught: date(2024, time.July, 3),
		Lyrics:     "Krishna nee begane baro...",
		Meaning:    "O Krishna, please come quickly",
	},
}
