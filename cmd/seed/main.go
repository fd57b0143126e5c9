package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/MKRushil/Pulse/internal/config"
	"github.com/MKRushil/Pulse/internal/entity"
	"github.com/MKRushil/Pulse/internal/repository/implementation"
	"github.com/MKRushil/Pulse/internal/repository/specification"
	"github.com/MKRushil/Pulse/pkg/database"
	"github.com/MKRushil/Pulse/pkg/embedding"
	"github.com/MKRushil/Pulse/pkg/spiral/fusion"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// seedCase is one fixture before embedding. TextCJK and the vector are
// derived at insert time so the fixtures stay plain text.
type seedCase struct {
	Id       string
	Pattern  string
	Symptoms []string
	Tongue   []string
	Pulse    []string
	Zangfu   []string
	TextRaw  string
	Domain   entity.CaseDomain
}

func main() {
	cfg := config.Load()

	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	ctx := context.Background()

	log.Println("Seeding Admin Practitioner...")
	seedAdmin(ctx, db)

	log.Println("Seeding Case Corpus...")

	var provider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "openai" {
		provider = embedding.NewOpenAIProvider(cfg.Ai.OpenAIBaseURL, cfg.Ai.OpenAIAPIKey, cfg.Ai.OpenAIEmbeddingModel)
	} else {
		provider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	}

	seedCases(ctx, db, provider)

	log.Println("✅ Seeding completed!")
}

// seedAdmin provisions the bootstrap admin account. Every further account
// is registered through the admin API, so without this one nobody can log in.
func seedAdmin(ctx context.Context, db *gorm.DB) {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Println("Info: ADMIN_EMAIL / ADMIN_PASSWORD not set, skipping admin seed")
		return
	}

	repo := implementation.NewPractitionerRepository(db)

	existing, err := repo.FindOne(ctx, specification.ByEmail{Email: email})
	if err != nil {
		log.Printf("Error checking admin account: %v", err)
		return
	}
	if existing != nil {
		log.Printf("Admin '%s' already exists, skipping...", email)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing admin password: %v", err)
		return
	}
	hashedStr := string(hashed)

	admin := &entity.Practitioner{
		Email:        email,
		PasswordHash: &hashedStr,
		FullName:     "System Administrator",
		Role:         entity.PractitionerRoleAdmin,
		Status:       entity.PractitionerStatusActive,
	}
	if err := repo.Create(ctx, admin); err != nil {
		log.Printf("Error creating admin account: %v", err)
		return
	}
	log.Printf("Created admin: %s", email)
}

func seedCases(ctx context.Context, db *gorm.DB, provider embedding.EmbeddingProvider) {
	repo := implementation.NewCaseRepository(db)

	for _, sc := range caseFixtures() {
		existing, err := repo.FindOne(ctx, specification.ByCaseID{ID: sc.Id})
		if err != nil {
			log.Printf("Error checking case '%s': %v", sc.Id, err)
			continue
		}
		if existing != nil {
			log.Printf("Case '%s' already exists, skipping...", sc.Id)
			continue
		}

		res, err := provider.Generate(sc.TextRaw, embedding.TaskPassage)
		if err != nil {
			log.Printf("Error embedding case '%s': %v", sc.Id, err)
			continue
		}

		record := &entity.CaseRecord{
			Id:          sc.Id,
			Pattern:     sc.Pattern,
			Symptoms:    sc.Symptoms,
			TongueTerms: sc.Tongue,
			PulseTerms:  sc.Pulse,
			ZangfuTerms: sc.Zangfu,
			TextRaw:     sc.TextRaw,
			TextCJK:     strings.Join(fusion.Tokenize(sc.TextRaw), " "),
			Domain:      sc.Domain,
			Embedding:   res.Embedding.Values,
			Source:      entity.CaseSourceSeed,
		}
		if err := repo.Create(ctx, record); err != nil {
			log.Printf("Error creating case '%s': %v", sc.Id, err)
		} else {
			log.Printf("Created case: %s (%s)", sc.Id, sc.Pattern)
		}
	}
}

// caseFixtures is the starter corpus. Narratives follow the chief-complaint
// plus present-illness style of real intake notes; term lists reuse the
// vocabulary the gate extracts, so seeded cases rank against live queries.
func caseFixtures() []seedCase {
	return []seedCase{
		{
			Id:       "seed-001",
			Pattern:  "心脾兩虛",
			Symptoms: []string{"心悸", "失眠", "多夢", "食慾不振", "面色蒼白", "乏力"},
			Tongue:   []string{"舌淡", "苔白"},
			Pulse:    []string{"細脈", "弱脈"},
			Zangfu:   []string{"心", "脾"},
			TextRaw:  "主訴：心悸失眠三個月。現病史：患者三個月前因工作壓力出現心悸，夜間失眠多夢，白天精神不濟，食慾不振，面色蒼白，全身乏力。舌淡苔白，脈細弱。",
			Domain:   entity.CaseDomainGeneral,
		},
		{
			Id:       "seed-002",
			Pattern:  "心血虛",
			Symptoms: []string{"心悸", "失眠", "多夢", "健忘", "面色蒼白"},
			Tongue:   []string{"舌淡", "苔薄白"},
			Pulse:    []string{"細脈"},
			Zangfu:   []string{"心"},
			TextRaw:  "主訴：心悸健忘兩個月。現病史：患者近兩個月心悸陣作，夜寐多夢易醒，記憶力明顯減退，面色蒼白無華，食納尚可。舌淡苔薄白，脈細。",
			Domain:   entity.CaseDomainGeneral,
		},
		{
			Id:       "seed-003",
			Pattern:  "肝氣鬱結",
			Symptoms: []string{"脅痛", "脹痛", "善太息", "情志抑鬱", "易怒"},
			Tongue:   []string{"舌淡紅", "苔薄白"},
			Pulse:    []string{"弦脈"},
			Zangfu:   []string{"肝"},
			TextRaw:  "主訴：兩脅脹痛一個月。現病史：患者情志不遂後出現兩脅脹痛，痛處走竄不定，時時善太息，心情抑鬱易怒，胸悶不舒。舌淡紅苔薄白，脈弦。",
			Domain:   entity.CaseDomainGeneral,
		},
		{
			Id:       "seed-004",
			Pattern:  "脾氣虛",
			Symptoms: []string{"食慾不振", "腹脹", "便溏", "乏力", "四肢睏倦"},
			Tongue:   []string{"舌淡", "苔白", "舌邊齒痕"},
			Pulse:    []string{"緩脈", "弱脈"},
			Zangfu:   []string{"脾"},
			TextRaw:  "主訴：食慾不振伴腹脹半年。現病史：患者半年來食慾不振，食後腹脹明顯，大便溏薄，每日二三次，全身乏力，四肢睏倦。舌淡苔白有齒痕，脈緩弱。",
			Domain:   entity.CaseDomainDigestive,
		},
		{
			Id:       "seed-005",
			Pattern:  "脾陽虛",
			Symptoms: []string{"腹痛", "腹瀉", "畏寒", "手足冰冷", "喜溫"},
			Tongue:   []string{"舌淡胖", "苔白滑"},
			Pulse:    []string{"沉脈", "遲脈"},
			Zangfu:   []string{"脾"},
			TextRaw:  "主訴：腹痛腹瀉反覆發作一年。現病史：患者一年來腹部隱痛，遇寒加重，得溫則減，大便清稀，畏寒肢冷，手足不溫。舌淡胖苔白滑，脈沉遲。",
			Domain:   entity.CaseDomainDigestive,
		},
		{
			Id:       "seed-006",
			Pattern:  "肝鬱脾虛",
			Symptoms: []string{"脅痛", "脹痛", "食慾不振", "腹脹", "便溏"},
			Tongue:   []string{"舌淡", "苔薄白"},
			Pulse:    []string{"弦脈", "緩脈"},
			Zangfu:   []string{"肝", "脾"},
			TextRaw:  "主訴：脅脹納差三個月。現病史：患者情緒波動後脅肋脹痛，食慾不振，腹脹便溏，症狀隨情志變化而增減，時時太息。舌淡苔薄白，脈弦緩。",
			Domain:   entity.CaseDomainDigestive,
		},
		{
			Id:       "seed-007",
			Pattern:  "腎陰虛",
			Symptoms: []string{"腰膝痠軟", "潮熱", "盜汗", "耳鳴", "五心煩熱"},
			Tongue:   []string{"舌紅", "少苔"},
			Pulse:    []string{"細脈", "數脈"},
			Zangfu:   []string{"腎"},
			TextRaw:  "主訴：腰膝痠軟伴盜汗半年。現病史：患者半年來腰膝痠軟無力，午後潮熱，夜間盜汗，耳鳴如蟬，五心煩熱，口乾咽燥。舌紅少苔，脈細數。",
			Domain:   entity.CaseDomainGeneral,
		},
		{
			Id:       "seed-008",
			Pattern:  "心腎不交",
			Symptoms: []string{"心煩", "失眠", "腰膝痠軟", "盜汗", "耳鳴"},
			Tongue:   []string{"舌紅", "少苔"},
			Pulse:    []string{"細脈", "數脈"},
			Zangfu:   []string{"心", "腎"},
			TextRaw:  "主訴：失眠心煩四個月。現病史：患者四個月來入睡困難，心煩不寧，兼見腰膝痠軟，夜間盜汗，偶有耳鳴。舌紅少苔，脈細數。",
			Domain:   entity.CaseDomainGeneral,
		},
		{
			Id:       "seed-009",
			Pattern:  "肝陽上亢",
			Symptoms: []string{"頭痛", "頭暈", "面紅", "易怒", "耳鳴"},
			Tongue:   []string{"舌紅", "苔黃"},
			Pulse:    []string{"弦脈", "數脈"},
			Zangfu:   []string{"肝"},
			TextRaw:  "主訴：頭痛頭暈兩個月。現病史：患者兩個月來頭痛且脹，以巔頂為甚，頭暈目眩，面紅目赤，急躁易怒，耳鳴口苦。舌紅苔黃，脈弦數。",
			Domain:   entity.CaseDomainGeneral,
		},
		{
			Id:       "seed-010",
			Pattern:  "肝血虛",
			Symptoms: []string{"頭暈", "目乾澀", "肢麻", "月經量少", "面色蒼白"},
			Tongue:   []string{"舌淡", "苔薄"},
			Pulse:    []string{"細脈"},
			Zangfu:   []string{"肝"},
			TextRaw:  "主訴：頭暈目澀伴月經量少三個月。現病史：患者三個月來頭暈眼花，兩目乾澀，四肢麻木，月經量少色淡，週期延後，面色蒼白。舌淡苔薄，脈細。",
			Domain:   entity.CaseDomainGynecological,
		},
		{
			Id:       "seed-011",
			Pattern:  "氣滯血瘀",
			Symptoms: []string{"刺痛", "固定痛", "經行腹痛", "面色晦暗"},
			Tongue:   []string{"舌紫暗", "瘀斑"},
			Pulse:    []string{"弦脈", "澀脈"},
			Zangfu:   []string{"肝"},
			TextRaw:  "主訴：經行腹痛一年餘。現病史：患者每逢經期小腹刺痛拒按，痛處固定，經色紫暗有塊，塊下痛減，平素情志不暢，面色晦暗。舌紫暗有瘀斑，脈弦澀。",
			Domain:   entity.CaseDomainGynecological,
		},
		{
			Id:       "seed-012",
			Pattern:  "胃熱證",
			Symptoms: []string{"胃脘灼痛", "口乾", "喜冷", "便秘", "消穀善飢"},
			Tongue:   []string{"舌紅", "苔黃"},
			Pulse:    []string{"數脈", "滑脈"},
			Zangfu:   []string{"脾"},
			TextRaw:  "主訴：胃脘灼痛兩週。現病史：患者兩週前嗜食辛辣後出現胃脘灼熱疼痛，口乾喜冷飲，消穀善飢，大便秘結。舌紅苔黃，脈滑數。",
			Domain:   entity.CaseDomainDigestive,
		},
	}
}
