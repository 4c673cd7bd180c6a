package abbrev

import "strings"

// commonWords holds uppercase forms that look like abbreviations but are
// ordinary words set in caps: stopwords, frequent nouns, place names,
// weekdays and months. Candidates matching this list are suppressed before
// scoring.
var commonWords = buildCommonWords()

func buildCommonWords() map[string]struct{} {
	groups := []string{
		// stopwords and function words
		`THE BE TO OF AND A IN THAT HAVE I IT FOR NOT ON WITH HE AS YOU DO AT
		 THIS BUT HIS BY FROM THEY WE SAY HER SHE OR AN WILL MY ONE ALL WOULD
		 THERE THEIR WHAT SO UP OUT IF ABOUT WHO GET WHICH GO ME WHEN MAKE CAN
		 LIKE TIME NO JUST HIM KNOW TAKE INTO YEAR YOUR GOOD SOME COULD THEM
		 SEE OTHER THAN THEN NOW LOOK ONLY COME ITS OVER THINK ALSO BACK AFTER
		 USE TWO HOW OUR WORK FIRST WELL WAY EVEN NEW WANT BECAUSE ANY THESE
		 GIVE DAY MOST US ARE WAS HAS HAD HOW MAN OLD TOO VERY MUST MIGHT
		 SHALL MAY THOSE SUCH MORE MANY MUCH BOTH EACH EVERY SAME UNDER AGAIN
		 ONCE HERE BETWEEN BEFORE DURING WITHOUT WITHIN THROUGH ANOTHER ALWAYS
		 NEVER SOMETIMES OFTEN USUALLY ALREADY STILL YET ELSE THOUGH ALTHOUGH
		 UNLESS UNTIL WHILE SINCE EITHER NEITHER WHETHER HOWEVER THEREFORE
		 THUS HENCE WHERE THREE FOUR FIVE SIX SEVEN EIGHT NINE TEN SECOND
		 THIRD LAST NEXT SHOULD`,
		// common nouns that show up in caps in headings
		`PEOPLE PERSON WOMAN CHILD FAMILY FRIEND TEAM GROUP COMPANY BUSINESS
		 GOVERNMENT WORLD COUNTRY STATE CITY TOWN PLACE HOME HOUSE ROOM OFFICE
		 SCHOOL COLLEGE UNIVERSITY HOSPITAL CHURCH MARKET STORE SHOP BANK
		 HOTEL PARK STREET ROAD BUILDING FLOOR AREA REGION WATER FOOD MONEY
		 MOMENT HOUR MINUTE WEEK MONTH THING PART PROBLEM QUESTION ANSWER
		 IDEA FACT REASON RESULT CHANGE POINT CASE LEVEL KIND TYPE FORM SORT
		 SIDE HAND HEAD FACE EYE BODY LIFE DEATH BIRTH AGE NAME WORD LINE
		 PAGE BOOK STORY CHAPTER SECTION TITLE NUMBER AMOUNT PRICE COST VALUE
		 RATE PERCENT TOTAL AVERAGE SUMMARY NOTE NOTES TABLE FIGURE APPENDIX
		 CONTENTS INTRODUCTION CONCLUSION ABSTRACT REPORT DRAFT FINAL`,
		// proper nouns, weekdays, months
		`AMERICA AMERICAN EUROPE EUROPEAN ASIA ASIAN AFRICA AFRICAN AUSTRALIA
		 CHINA CHINESE INDIA INDIAN JAPAN JAPANESE KOREA KOREAN RUSSIA RUSSIAN
		 FRANCE FRENCH GERMANY GERMAN ITALY ITALIAN SPAIN SPANISH CANADA
		 CANADIAN MEXICO MEXICAN BRAZIL ENGLAND ENGLISH BRITISH IRELAND IRISH
		 SCOTLAND SCOTTISH WALES LONDON PARIS TOKYO BEIJING DELHI MOSCOW
		 BERLIN MADRID ROME MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY
		 SUNDAY JANUARY FEBRUARY MARCH APRIL JUNE JULY AUGUST SEPTEMBER
		 OCTOBER NOVEMBER DECEMBER SPRING SUMMER FALL AUTUMN WINTER KENYA`,
		// verbs that appear in shouty headings
		`FIND TELL FEEL BECOME LEAVE BRING BEGIN KEEP HOLD WRITE STAND HEAR
		 SEEM TURN SHOW HELP TALK CONTINUE HAPPEN CARRY MOVE FOLLOW STOP
		 CREATE SPEAK READ ALLOW ADD SPEND GROW OPEN WALK WIN OFFER REMEMBER
		 LOVE CONSIDER APPEAR PRODUCE CONTAIN REDUCE REQUIRE DEVELOP RECEIVE
		 RETURN BUILD REMAIN INDICATE REACH EXPLAIN RAISE PASS SELL DECIDE
		 DRAW SENT EXPECT STAY DESCRIBE SUGGEST INCLUDE ENSURE PROMOTE
		 IMPROVE SUPPORT PROVIDE EXPAND SECURE IMPLEMENT STRENGTHEN`,
	}

	m := make(map[string]struct{}, 512)
	for _, g := range groups {
		for _, w := range strings.Fields(g) {
			m[w] = struct{}{}
		}
	}
	return m
}

// IsCommonWord reports whether the surface form is a known non-abbreviation.
// The check is against the uppercased form so dotted variants still match.
func IsCommonWord(form string) bool {
	key := strings.ToUpper(strings.ReplaceAll(form, ".", ""))
	_, ok := commonWords[key]
	return ok
}
