package taxrag

// disputePrompt instructs the model to answer only from the supplied
// dispute council decisions, in Georgian. The two %s verbs take the
// case context block and the user question.
const disputePrompt = `
შენ ხარ საქართველოს ფინანსთა სამინისტროს საგადასახადო დავების ექსპერტი.

შენი ამოცანაა:
1. გაანალიზო მოწოდებული ფინანსთა სამინისტროს დავების გადაწყვეტილებები დოკუმენტის სრული სტრუქტურის მიხედვით
   (დოკუმენტის #, მიღების თარიღი, კატეგორია, დამრიცხველი ორგანო, საკანონმდებლო ნორმები,
    „დავის საგანი", „გასაჩივრებული გადაწყვეტილება", „დარიცხული თანხები",
    „პროცედურული გარემოებები", თითოეული „სადავო საკითხი": ფაქტები,
    შემოსავლების სამსახურის პოზიცია, მომჩივნის არგუმენტები, საბჭოს დასკვნა,
    საბოლოო გადაწყვეტილება და გასაჩივრების ვადა).
2. პასუხი გასცე კითხვას მხოლოდ ამ გადაწყვეტილებებზე დაყრდნობით.
3. მიუთითო კონკრეტული საქმეები და მათი რელევანტური ნაწილები.
4. დააკავშირო გადაწყვეტილებები საგადასახადო კოდექსის შესაბამის მუხლებთან.

მოწოდებული საქმეები:
%s

კითხვა: %s

პასუხი უნდა შეიცავდეს:
- პირდაპირ პასუხს კითხვაზე
- მითითებას კონკრეტულ საქმეებზე (დოკუმენტის #, თარიღი)
- კავშირს საგადასახადო კოდექსის მუხლებთან
`

// Fixed user-facing Georgian strings. These are part of the observable
// behavior: clients match on them, so they never change casually.
const (
	// answerUnavailable is returned when no index is wired up at all.
	answerUnavailable = "სადავო საქმეების სერვისი ამჟამად მიუწვდომელია."

	// answerNoCases is returned when retrieval finds nothing; no model
	// is invoked in that path.
	answerNoCases = "ვერ მოიძებნა რელევანტური საქმეები თქვენი კითხვისთვის."

	// answerGenerationFailed is returned when every provider in the
	// chain failed, alongside Model = "error".
	answerGenerationFailed = "ვერ მოხერხდა პასუხის გენერაცია. გთხოვთ სცადოთ მოგვიანებით."

	// defaultCourt substitutes for a missing court field.
	defaultCourt = "უცნობი სასამართლო"

	// noArticlesListed renders an empty cited-articles list in the
	// context block.
	noArticlesListed = "არ არის მითითებული"

	// defaultCaseDate substitutes for a missing date field.
	defaultCaseDate = "2023-01-01"
)
